package ir

// OpClass groups operators by the typing rule they follow.
type OpClass int

const (
	OpUnknown    OpClass = iota
	OpArithmetic         // + - * / // %: operands and result share one type
	OpCompare            // == != < <= > >= in, not in: operands promote, result bool
	OpLogical            // and or not: bool in, bool out
	OpBitwise            // & | ^ << >> ~: operands and result share one integer type
	OpPower              // **: result is always a float
)

var opClasses = map[string]OpClass{
	"+":      OpArithmetic,
	"-":      OpArithmetic,
	"*":      OpArithmetic,
	"/":      OpArithmetic,
	"//":     OpArithmetic,
	"%":      OpArithmetic,
	"==":     OpCompare,
	"!=":     OpCompare,
	"<":      OpCompare,
	"<=":     OpCompare,
	">":      OpCompare,
	">=":     OpCompare,
	"in":     OpCompare,
	"not in": OpCompare,
	"and":    OpLogical,
	"or":     OpLogical,
	"not":    OpLogical,
	"&":      OpBitwise,
	"|":      OpBitwise,
	"^":      OpBitwise,
	"<<":     OpBitwise,
	">>":     OpBitwise,
	"~":      OpBitwise,
	"**":     OpPower,
}

// ClassifyOp returns the typing class of an operator spelling.
func ClassifyOp(op string) OpClass {
	return opClasses[op]
}
