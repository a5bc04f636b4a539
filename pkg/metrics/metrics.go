package metrics

/*
Labels and so on for metrics used in the conductor.
*/

const (
	LabelAction  = "action"
	LabelMethod  = "method"
	LabelModel   = "model"
	LabelRoute   = "route"
	LabelService = "service"
	LabelSuccess = "success"
)
