package api

// ProjectRequest carries one packed batch and the projection attributes.
type ProjectRequest struct {
	Boundaries       []int       `json:"boundaries"`
	Width            int         `json:"width"`
	Features         [][]float32 `json:"features"`
	ContextStart     int         `json:"context_start"`
	ContextLength    int         `json:"context_length"`
	PaddingTrainable bool        `json:"padding_trainable,omitempty"`
	Padding          [][]float32 `json:"padding,omitempty"`
}

type ProjectResponse struct {
	ID      string      `json:"id"`
	Object  string      `json:"object"`
	Created int64       `json:"created"`
	Backend string      `json:"backend"`
	Rows    int         `json:"rows"`
	Width   int         `json:"width"`
	Output  [][]float32 `json:"output"`
}

// GradRequest asks for the gradients of a projection given the gradient of
// its output.  Both gradients are returned unless disabled.
type GradRequest struct {
	ProjectRequest
	OutputGrad  [][]float32 `json:"output_grad"`
	InputGrad   *bool       `json:"input_grad,omitempty"`
	PaddingGrad *bool       `json:"padding_grad,omitempty"`
}

type GradResponse struct {
	ID          string      `json:"id"`
	Object      string      `json:"object"`
	Created     int64       `json:"created"`
	InputGrad   [][]float32 `json:"input_grad,omitempty"`
	PaddingGrad [][]float32 `json:"padding_grad,omitempty"`
}

type BatchRequest struct {
	Requests []ProjectRequest `json:"requests"`
}

type BatchResponse struct {
	Object string            `json:"object"`
	Data   []ProjectResponse `json:"data"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Workers int    `json:"workers"`
	Version string `json:"version"`
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error ResponseError `json:"error"`
}
