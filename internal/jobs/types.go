package jobs

type JobType string

const (
	JobUserSignup    JobType = "user.signup"
	JobTicketCreated JobType = "ticket.created"
)

// check to see if the job type is a known constant

func (t JobType) IsValid() bool {
	switch t {
	case JobUserSignup, JobTicketCreated:
		return true
	default:
		return false
	}
}
