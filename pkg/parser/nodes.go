package parser

// Directive node names. They are handled by the front-end and never reach the
// compiler.
const (
	NodeInclude = "#include"
	NodeParam   = "#param"
	NodeText    = "#text"
)

// Property keys.
const (
	PropDefault = "default"
	// PropWith holds include parameters in YAML and JSON documents.
	PropWith = "with"
)

// _nullKey stands for the nil name slot in formats whose keys are always
// strings (JSON).
const _nullKey = ""
