package order

// Status represents the back-office status of a placed order
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// IsValid checks if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusProcessing || target == StatusCompleted || target == StatusCancelled
	case StatusProcessing:
		return target == StatusCompleted || target == StatusCancelled
	}
	return false
}

// Label returns the Vietnamese label shown on the customer's order history
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Chờ xử lý"
	case StatusProcessing:
		return "Đang giao"
	case StatusCompleted:
		return "Hoàn thành"
	case StatusCancelled:
		return "Đã hủy"
	}
	return string(s)
}
