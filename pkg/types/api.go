package types

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	// Four measurements: sepal length, sepal width, petal length, petal width (cm).
	// example: [5.1, 3.5, 1.4, 0.2]
	Features []float64 `json:"features" example:"5.1,3.5,1.4,0.2"`
}

// PredictResponse is returned by POST /predict.
type PredictResponse struct {
	// Predicted species.
	// example: setosa
	PredictedClass string `json:"predicted_class" example:"setosa"`
}

// MessageResponse is returned by GET /.
type MessageResponse struct {
	// example: Iris model API
	Message string `json:"message" example:"Iris model API"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: features must contain exactly 4 values, got 2
	Error string `json:"error" example:"features must contain exactly 4 values, got 2"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// NotFoundResponse is returned with status 200 by GET /ui when the demo page is absent.
type NotFoundResponse struct {
	// example: frontend not found
	Error string `json:"error" example:"frontend not found"`
}
