package domain

// WorkOrderStatus is the lifecycle state of a work order
type WorkOrderStatus string

const (
	StatusDraft           WorkOrderStatus = "DRAFT"
	StatusPendingApproval WorkOrderStatus = "PENDING_APPROVAL"
	StatusApproved        WorkOrderStatus = "APPROVED"
	StatusInProgress      WorkOrderStatus = "IN_PROGRESS"
	StatusCompleted       WorkOrderStatus = "COMPLETED"
	StatusCanceled        WorkOrderStatus = "CANCELED"
)

// allowedTransitions is the directed edge set of the status graph. Terminal
// states have no outbound edges.
var allowedTransitions = map[WorkOrderStatus][]WorkOrderStatus{
	StatusDraft:           {StatusPendingApproval, StatusCanceled},
	StatusPendingApproval: {StatusApproved, StatusDraft, StatusCanceled},
	StatusApproved:        {StatusInProgress, StatusCanceled},
	StatusInProgress:      {StatusCompleted, StatusCanceled},
	StatusCompleted:       {},
	StatusCanceled:        {},
}

// IsValid reports whether the status is a known lifecycle state
func (s WorkOrderStatus) IsValid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsTerminal reports whether the status has no outbound transitions
func (s WorkOrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// CanTransitionTo reports whether the edge from s to target exists
func (s WorkOrderStatus) CanTransitionTo(target WorkOrderStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}
