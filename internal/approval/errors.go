package approval

import "errors"

// Ошибки бизнес-правил workflow. Каждая — отдельная причина отказа для
// вызывающей стороны; автоматических ретраев внутри workflow нет.
var (
	ErrNotAuthorized  = errors.New("user is not a partner of the project")
	ErrConflict       = errors.New("a pending approval already exists for this target")
	ErrAlreadyVoted   = errors.New("vote has already been cast")
	ErrApprovalClosed = errors.New("approval has already been resolved")

	ErrInvalidDecision = errors.New("decision must be approved or rejected")
)
