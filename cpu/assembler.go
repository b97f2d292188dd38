// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
	"FLAG":   "vf",
}

// Assembler is a single pass macro assembler for CHIP-8 programs.
type Assembler struct {
	Verbose bool     // If set, verbosely logs the assembler actions.
	Opcode  []Opcode // List of generated opcodes.

	predefine map[string]string   // Predefines
	Label     map[string]uint16   // Map of jump labels to addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.

	expansion int // Count of macro expansions, for unique '@' labels.
}

// Define defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

var (
	reLabel     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
	reCharacter = regexp.MustCompile(`'\\?[^']'`)
	reParen     = regexp.MustCompile(`\$\([^\$]*\)`)
)

// Operand keywords that are never labels.
var keywords = map[string]bool{
	"i": true, "[i]": true, "dt": true, "st": true, "k": true, "f": true, "b": true,
}

// registerOf returns the register index of a 'vN' operand.
func registerOf(word string) (reg uint16, ok bool) {
	if len(word) != 2 || (word[0] != 'v' && word[0] != 'V') {
		return
	}
	value, err := strconv.ParseUint(word[1:], 16, 4)
	if err != nil {
		return
	}

	return uint16(value), true
}

// valueOf returns the value of a simple word.
func (asm *Assembler) valueOf(word string) (value int64, err error) {
	if word[0] == '\'' {
		// Character quotes should have been expanded into
		// values in parseLine()
		err = ErrParseCharacter(word[1 : len(word)-1])
		return
	}
	value, err = strconv.ParseInt(word, 0, 32)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{Name: "asm"}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var num int64
		num, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			continue
		}
		pred[key] = starlark.MakeInt64(num)
	}
	err = nil
	for key, addr := range asm.Label {
		pred[key] = starlark.MakeInt(int(addr))
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	return
}

// parseLine parses a single line into words, expanding equates and macros.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do 'x' evaluations
	line = reCharacter.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "e":
				str = "\033"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	line = reParen.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%d", value)
	})
	if err != nil {
		return
	}

	words = strings.Fields(strings.ReplaceAll(line, ",", " "))

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]uint16, 16)
		}
		asm.Label[label] = uint16(asm.currentAddr())
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = words[1+n]
		}
		defer func() { asm.Equate = old_equate }()

		asm.expansion++
		prefix := fmt.Sprintf("%v_%v_", name, asm.expansion)
		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", prefix)
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// currentAddr gets the load address of the next assembled byte.
func (asm *Assembler) currentAddr() int {
	if len(asm.Opcode) == 0 {
		return int(PROGRAM_START)
	}

	last := asm.Opcode[len(asm.Opcode)-1]

	return int(last.Addr) + len(last.Bytes)
}

// Parse parses an input stream into a Program containing opcodes.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			var syntaxErr *ErrSyntax
			if !errors.As(err, &syntaxErr) {
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
			}
		}
	}()

	clear(asm.Label)
	asm.Opcode = asm.Opcode[:0]
	asm.expansion = 0
	if asm.Macro == nil {
		asm.Macro = make(map[string](*Macro))
	}
	clear(asm.Macro)
	asm.Equate = maps.Clone(sysEquate)
	maps.Insert(asm.Equate, maps.All(_memory_defines))
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])
		words := strings.Fields(line)

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	line = ""
	if asm.currentAddr()-int(PROGRAM_START) > ROM_LIMIT {
		err = ErrProgramTooLarge
		return
	}

	// Final linking of jump labels.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]

		if len(op.LinkLabel) == 0 {
			continue
		}
		label := op.LinkLabel
		addr, ok := asm.Label[label]
		if !ok {
			lineno = op.LineNo
			err = ErrLabelMissing(label)
			return
		}
		if len(op.Bytes) != 2 {
			log.Fatalf("Unable to link label '%s' to line %d: %v", label, op.LineNo, op.Words)
		}
		word := uint16(op.Bytes[0])<<8 | uint16(op.Bytes[1])
		word |= fieldNNN.Place(addr)
		op.Bytes = Code(word).Bytes()
	}

	prog = &Program{
		Opcodes: slices.Clone(asm.Opcode),
	}

	return
}

// dataOf parses the arguments of .db and .dw.
func (asm *Assembler) dataOf(words []string, width int) (data []byte, err error) {
	if len(words) == 0 {
		err = ErrOpcodeValueMissing
		return
	}

	limit := int64(1)<<(8*width) - 1
	for _, word := range words {
		var value int64
		value, err = asm.valueOf(word)
		if err != nil {
			return
		}
		if value < 0 && value >= -(limit+1)/2 {
			value += limit + 1
		}
		if value < 0 || value > limit {
			err = ErrOperandRange
			return
		}
		if width == 2 {
			data = append(data, byte(value>>8))
		}
		data = append(data, byte(value))
	}

	return
}

// operandError ranks how close a shape came to matching.
func operandError(err error) int {
	switch {
	case errors.Is(err, ErrOperandRange):
		return 3
	case errors.Is(err, ErrInstructionInvalid):
		return 2
	case errors.Is(err, ErrOpcodeExtraArgs), errors.Is(err, ErrOpcodeValueMissing):
		return 1
	}
	return 2
}

// matchOperands encodes the operands for a specific shape.
func (asm *Assembler) matchOperands(shape *Shape, operands []string) (args []uint16, label string, err error) {
	if len(operands) > len(shape.Syntax) {
		err = ErrOpcodeExtraArgs
		return
	}
	if len(operands) < len(shape.Syntax) {
		err = ErrOpcodeValueMissing
		return
	}

	for n, syn := range shape.Syntax {
		operand := operands[n]
		lower := strings.ToLower(operand)
		switch syn {
		case "vx", "vy":
			reg, ok := registerOf(lower)
			if !ok {
				err = ErrInstructionInvalid
				return
			}
			args = append(args, reg)
		case "kk", "nnn", "n":
			if _, ok := registerOf(lower); ok || keywords[lower] {
				err = ErrInstructionInvalid
				return
			}
			field := shape.Fields[len(args)]
			value, verr := asm.valueOf(operand)
			if verr != nil {
				if syn == "nnn" && reLabel.MatchString(operand) {
					label = operand
					args = append(args, 0)
					continue
				}
				err = verr
				return
			}
			limit := int64(field.Max())
			if value < 0 && value >= -(limit+1)/2 {
				value += limit + 1
			}
			if value < 0 || value > limit {
				err = ErrOperandRange
				return
			}
			args = append(args, uint16(value))
		default:
			if lower != syn {
				err = ErrInstructionInvalid
				return
			}
		}
	}

	return
}

// parseInstruction finds the shape matching a mnemonic and its operands.
func (asm *Assembler) parseInstruction(words []string) (code Code, label string, err error) {
	mnemonic := strings.ToLower(words[0])
	operands := words[1:]

	err = ErrInstructionInvalid
	rank := -1
	for n := range Shapes {
		shape := &Shapes[n]
		if shape.Mnemonic != mnemonic {
			continue
		}

		args, link, merr := asm.matchOperands(shape, operands)
		if merr == nil {
			code = Encode(shape.Op, args...)
			if decoded, _ := Decode(uint16(code)); decoded != shape {
				merr = ErrInstructionInvalid
			} else {
				label = link
				err = nil
				return
			}
		}

		if r := operandError(merr); r > rank {
			rank = r
			err = merr
		}
	}

	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	// no-op
	if len(words) == 0 {
		return
	}

	op := Opcode{
		LineNo: lineno,
		Addr:   uint16(asm.currentAddr()),
		Words:  words,
	}

	switch words[0] {
	case ".db":
		op.Data = true
		op.Bytes, err = asm.dataOf(words[1:], 1)
	case ".dw":
		op.Data = true
		op.Bytes, err = asm.dataOf(words[1:], 2)
	default:
		var code Code
		code, op.LinkLabel, err = asm.parseInstruction(words)
		op.Bytes = code.Bytes()
	}
	if err != nil {
		return
	}

	asm.Opcode = append(asm.Opcode, op)

	return
}
