package patricia

import "errors"

// Error kinds from §7 "Patricia".
var (
	ErrMissingNodePlaceholder = errors.New("patricia: missing node placeholder")
	ErrMissingLeafInput       = errors.New("patricia: missing leaf input")
	ErrDeletedLeafInSkeleton  = errors.New("patricia: deleted leaf survives in skeleton")
	ErrDoubleUpdate           = errors.New("patricia: double update of the same node")
)
