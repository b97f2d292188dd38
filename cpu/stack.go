package cpu

const (
	STACK_LIMIT = 16 // Maximum stack depth
)

// Stack is the fixed depth return address stack.
type Stack struct {
	Data    [STACK_LIMIT]uint16
	Pointer int // Number of valid entries.
}

func (s *Stack) Push(value uint16) (err error) {
	if s.Full() {
		err = ErrStackOverflow
		return
	}

	s.Data[s.Pointer] = value
	s.Pointer++
	return
}

func (s *Stack) Pop() (value uint16, err error) {
	value, err = s.Peek()
	if err == nil {
		s.Pointer--
	}
	return
}

func (s *Stack) Empty() bool {
	return s.Pointer == 0
}

func (s *Stack) Full() bool {
	return s.Pointer == STACK_LIMIT
}

func (s *Stack) Peek() (value uint16, err error) {
	if s.Empty() {
		err = ErrStackUnderflow
		return
	}

	return s.Data[s.Pointer-1], nil
}

func (s *Stack) Reset() {
	clear(s.Data[:])
	s.Pointer = 0
}
