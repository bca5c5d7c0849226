package api

import (
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/slatehq/slate-server/internal/http/response"
)

// EnvelopeTransformer wraps every huma response body in the versioned
// envelope. Errors built by RegisterErrorHandler keep their code and details.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	switch body := v.(type) {
	case *response.Envelope:
		return body, nil
	case *APIError:
		return &response.Envelope{
			Version: response.Version,
			Error:   body.Message,
			Code:    body.Code,
			Details: body.Details,
		}, nil
	case error:
		return &response.Envelope{Version: response.Version, Error: body.Error()}, nil
	}

	code, err := strconv.Atoi(status)
	if err != nil {
		code = 200
	}
	return &response.Envelope{
		Version: response.Version,
		Success: code < 400,
		Data:    v,
	}, nil
}
