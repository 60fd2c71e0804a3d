package httpsrv

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	repository "github.com/goliatone/go-repository-bun"

	"github.com/farmkeep/farmkeep/auth"
)

// errorBody is the JSON envelope for failures.
type errorBody struct {
	Message  string         `json:"message"`
	TextCode string         `json:"text_code,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// respondError maps an error to its HTTP status and JSON body. Rich errors
// carry their own code; everything unclassified is a 500.
func respondError(c *fiber.Ctx, logger auth.Logger, err error) error {
	if err == nil {
		return nil
	}

	// ozzo field errors surface as a 400 with a per-field map
	var fieldErrs validation.Errors
	if goerrors.As(err, &fieldErrs) {
		fields := map[string]any{}
		for name, ferr := range fieldErrs {
			fields[name] = ferr.Error()
		}
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{
			Error: errorBody{
				Message:  "validation failed",
				TextCode: "VALIDATION_FAILED",
				Fields:   fields,
			},
		})
	}

	if repository.IsRecordNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{
			Error: errorBody{
				Message:  "record not found",
				TextCode: "NOT_FOUND",
			},
		})
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		status := statusFor(rich)
		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed", "error", err, "detail", print.MaybePrettyJSON(rich.Metadata))
			// internal detail never leaves the process
			return c.Status(status).JSON(errorResponse{
				Error: errorBody{
					Message:  "internal server error",
					TextCode: "INTERNAL",
				},
			})
		}

		return c.Status(status).JSON(errorResponse{
			Error: errorBody{
				Message:  rich.Message,
				TextCode: rich.TextCode,
			},
		})
	}

	logger.Error("unclassified request error", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{
		Error: errorBody{
			Message:  "internal server error",
			TextCode: "INTERNAL",
		},
	})
}

func statusFor(rich *goerrors.Error) int {
	if rich.Code > 0 {
		return int(rich.Code)
	}

	switch rich.Category {
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return fiber.StatusForbidden
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return fiber.StatusBadRequest
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
