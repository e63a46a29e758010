package pipeline

import "errors"

// ErrTryAgain marks a job disrupted by an external dependency: a failed
// move or a catalog schema problem an operator must fix. The worker
// unlocks the dataset and resubmits the job instead of retrying in place.
var ErrTryAgain = errors.New("try again")
