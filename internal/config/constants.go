package config

// ConfigFileName is the engine configuration file looked up by FindConfig.
const ConfigFileName = "tyunify.yaml"

// ConfigFileNames are all recognized configuration file names, in lookup order.
var ConfigFileNames = []string{"tyunify.yaml", "tyunify.yml"}

// IRFileExtensions are the extensions accepted by the driver for IR documents.
var IRFileExtensions = []string{".yaml", ".yml"}

// Solver defaults
const (
	// DefaultMaxIterations bounds both the sweeps over one SCC and the outer
	// rounds over the whole condensation.
	DefaultMaxIterations = 100

	// DefaultParallelism is the number of functions extracted concurrently.
	// 1 keeps extraction sequential.
	DefaultParallelism = 1
)

// Call graph
const (
	// UnknownSinkName names the synthetic node that receives every call whose
	// target is not a function of the compilation unit.
	UnknownSinkName = "<unknown>"
)

// Built-in library function names with signatures in the default table.
const (
	PrintFuncName = "print"
	LenFuncName   = "len"
	IntFuncName   = "int"
	FloatFuncName = "float"
	StrFuncName   = "str"
	BoolFuncName  = "bool"
	AbsFuncName   = "abs"
	SqrtFuncName  = "sqrt"
	RangeFuncName = "range"
	InputFuncName = "input"
)

// Version is the engine version reported by the CLI.
const Version = "0.3.0"
