package main

import (
	"strings"

	"github.com/ezrec/chip8/io"
)

const (
	ANSI_HOME  = "\x1b[H"
	ANSI_CLEAR = "\x1b[2J"
	ANSI_HIDE  = "\x1b[?25l"
	ANSI_SHOW  = "\x1b[?25h"
)

// halfBlocks maps a (top, bottom) pixel pair to a glyph.
var halfBlocks = [2][2]string{
	{" ", "▄"},
	{"▀", "█"},
}

func lit(grid *io.Grid, x, y int) int {
	if grid[y][x/8]&(0x80>>(x%8)) != 0 {
		return 1
	}
	return 0
}

// frame renders the grid two pixel rows per text line. Lines end in CR LF
// as the terminal is in raw mode.
func frame(grid *io.Grid) string {
	var sb strings.Builder

	sb.WriteString(ANSI_HOME)
	for y := 0; y < io.HEIGHT; y += 2 {
		for x := range io.WIDTH {
			sb.WriteString(halfBlocks[lit(grid, x, y)][lit(grid, x, y+1)])
		}
		sb.WriteString("\r\n")
	}

	return sb.String()
}
