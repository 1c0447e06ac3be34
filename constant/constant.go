package constant

// MergeStatus is the per-session outcome of a reassembly pass.
type MergeStatus string

const (
	MergeStatusSuccess MergeStatus = "success"
	MergeStatusSkipped MergeStatus = "skipped"
	MergeStatusFailed  MergeStatus = "failed"
)

// Skip reasons reported in reassembly summaries.
const (
	SkipReasonAlreadyMerged      = "already merged"
	SkipReasonInsufficientChunks = "insufficient chunks"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
