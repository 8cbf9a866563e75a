package errors

// Error code constants organized by phase
// E500-E509: Trace errors
// E510-E519: Delegation errors
// E520-E529: CRUD generator errors
// E530-E539: Configuration errors

const (
	// Trace errors (E500-E509)
	ErrCrossContextReference = "E500"
	ErrUnparsableSource      = "E501"

	// Delegation errors (E510-E519)
	ErrInvalidDelegateSource = "E510"
	ErrDuplicateDelegate     = "E511"
	ErrStaleDescription      = "E512"

	// CRUD generator errors (E520-E529)
	ErrInvalidCrudOption = "E520"
	ErrUnknownResource   = "E521"

	// Configuration errors (E530-E539)
	ErrInvalidConfig       = "E530"
	ErrIndirectAssociation = "E531"
	ErrUnknownContext      = "E532"
)

// Phase names
const (
	PhaseTrace    = "trace"
	PhaseDelegate = "delegate"
	PhaseCrud     = "crud"
	PhaseConfig   = "config"
)

// ErrorCodeInfo describes an error code
type ErrorCodeInfo struct {
	Code        string
	Phase       string
	Title       string
	Description string
}

var errorCodeRegistry = map[string]ErrorCodeInfo{
	ErrCrossContextReference: {
		Code:  ErrCrossContextReference,
		Phase: PhaseTrace,
		Title: "Cross-context reference",
		Description: "A package inside one context imports or references a package inside another " +
			"context. Contexts may only talk to each other through their own top-level API.",
	},
	ErrUnparsableSource: {
		Code:        ErrUnparsableSource,
		Phase:       PhaseTrace,
		Title:       "Unparsable source file",
		Description: "A Go file could not be parsed, so its references could not be checked.",
	},
	ErrInvalidDelegateSource: {
		Code:        ErrInvalidDelegateSource,
		Phase:       PhaseDelegate,
		Title:       "Invalid delegation source",
		Description: "A delegation source package could not be found, parsed or described.",
	},
	ErrDuplicateDelegate: {
		Code:  ErrDuplicateDelegate,
		Phase: PhaseDelegate,
		Title: "Duplicate delegated function",
		Description: "Two delegation sources export a function with the same name, so the " +
			"target package would declare it twice.",
	},
	ErrStaleDescription: {
		Code:        ErrStaleDescription,
		Phase:       PhaseDelegate,
		Title:       "Missing interface description",
		Description: "No interface description exists for a delegation source. Run describe first.",
	},
	ErrInvalidCrudOption: {
		Code:        ErrInvalidCrudOption,
		Phase:       PhaseCrud,
		Title:       "Invalid CRUD generator option",
		Description: "only/except name an unknown operation, or both were given.",
	},
	ErrUnknownResource: {
		Code:        ErrUnknownResource,
		Phase:       PhaseCrud,
		Title:       "Unknown resource",
		Description: "The requested resource is not defined in the schema file.",
	},
	ErrInvalidConfig: {
		Code:        ErrInvalidConfig,
		Phase:       PhaseConfig,
		Title:       "Invalid configuration",
		Description: "contexted.yml failed validation.",
	},
	ErrIndirectAssociation: {
		Code:  ErrIndirectAssociation,
		Phase: PhaseConfig,
		Title: "Indirect association count",
		Description: "Association counts can only be requested for associations declared " +
			"directly on the queried resource.",
	},
	ErrUnknownContext: {
		Code:        ErrUnknownContext,
		Phase:       PhaseConfig,
		Title:       "Unknown context",
		Description: "A configured context does not match any package in the module.",
	},
}

// GetErrorCodeInfo returns information about an error code
func GetErrorCodeInfo(code string) (ErrorCodeInfo, bool) {
	info, ok := errorCodeRegistry[code]
	return info, ok
}
