package form

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"microsite/internal/analytics"
	"microsite/internal/constants"
	"microsite/internal/logger"
	apperrors "microsite/pkg/errors"
	"microsite/pkg/logging"
	"microsite/pkg/metrics"
)

const (
	AnnounceInvalid       = "Please correct the errors in the form"
	AnnounceSubmitted     = "Form submitted successfully"
	AnnounceSubmitFailed  = "There was an error submitting the form. Please try again."
	AlertSubmitFailed     = "There was an error submitting your request. Please try again."
	ConversionSignupType  = "early_access_signup"
	BudgetNotSpecified    = "not_specified"
	earlyAccessRoutesSlug = "early-access"
)

type FieldRequest struct {
	Value     string `json:"value"`
	Checked   bool   `json:"checked"`
	ShowError *bool  `json:"show_error"`
}

type FieldResponse struct {
	FieldResult
	Display *DisplayState `json:"display"`
}

type InvalidResponse struct {
	FormResult
	Display  *DisplayState `json:"display"`
	Focus    string        `json:"focus,omitempty"`
	Announce string        `json:"announce"`
}

type SuccessResponse struct {
	Outcome
	Modal    string `json:"modal"`
	Reset    bool   `json:"reset"`
	Announce string `json:"announce"`
}

type FailureResponse struct {
	apperrors.ErrorResponse
	Alert    string `json:"alert"`
	Announce string `json:"announce"`
}

type Handler struct {
	schema   Schema
	pipeline *Pipeline
	sink     *analytics.Sink
	logger   logger.Logger
}

func NewHandler(schema Schema, pipeline *Pipeline, sink *analytics.Sink, log logger.Logger) *Handler {
	return &Handler{
		schema:   schema,
		pipeline: pipeline,
		sink:     sink,
		logger:   log,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	forms := router.Group("/api/v1/forms/" + earlyAccessRoutesSlug)
	{
		forms.POST("", h.Submit)
		forms.POST("/fields/:field", h.ValidateField)
	}
}

// ValidateField godoc
// @Summary      Validate one form field
// @Description  Validate a single field on blur or while editing a field that shows an error
// @Tags         forms
// @Accept       json
// @Produce      json
// @Param        field  path  string        true  "Field name"
// @Param        input  body  FieldRequest  true  "Field value"
// @Success      200  {object}  FieldResponse
// @Failure      400  {object}  errors.ErrorResponse
// @Router       /forms/early-access/fields/{field} [post]
func (h *Handler) ValidateField(c *gin.Context) {
	var req FieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.ToErrorResponse(apperrors.ErrValidation.WithCause(err)))
		return
	}

	showError := true
	if req.ShowError != nil {
		showError = *req.ShowError
	}

	display := NewDisplayState()
	field := h.schema.Field(c.Param("field"), req.Value, req.Checked)
	result := ValidateField(field, display, showError)
	if !result.IsValid {
		metrics.IncFormValidationFailure(field.Name)
	}

	c.JSON(http.StatusOK, FieldResponse{FieldResult: result, Display: display})
}

// Submit godoc
// @Summary      Submit the early access form
// @Description  Validate every required field and submit the form
// @Tags         forms
// @Accept       json
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      409  {object}  FailureResponse
// @Failure      422  {object}  InvalidResponse
// @Failure      503  {object}  FailureResponse
// @Router       /forms/early-access [post]
func (h *Handler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	values, err := submittedValues(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, apperrors.ToErrorResponse(apperrors.ErrValidation.WithCause(err)))
		return
	}

	display := NewDisplayState()
	payload, result := Prepare(h.schema.FromValues(values), display)
	if !result.IsValid {
		for _, fe := range result.Errors {
			metrics.IncFormValidationFailure(fe.Field)
		}
		h.logger.DebugwCtx(ctx, "Form validation failed", "form", h.schema.Name, "errors", len(result.Errors))
		c.JSON(apperrors.ErrInvalidForm.Status, InvalidResponse{
			FormResult: result,
			Display:    display,
			Focus:      display.FirstError(),
			Announce:   AnnounceInvalid,
		})
		return
	}

	client := logging.GetSessionID(ctx)
	if client == "" {
		client = c.ClientIP()
	}

	outcome, err := h.pipeline.Submit(ctx, h.pipeline.InstanceKey(client), payload)
	if err != nil {
		c.JSON(apperrors.ToHTTPStatus(err), FailureResponse{
			ErrorResponse: apperrors.ToErrorResponse(err),
			Alert:         AlertSubmitFailed,
			Announce:      AnnounceSubmitFailed,
		})
		return
	}

	budget := payload["budget"]
	if budget == "" {
		budget = BudgetNotSpecified
	}
	h.sink.TrackEvent(ctx, analytics.EventConversion, map[string]interface{}{
		"type":    ConversionSignupType,
		"company": payload["company"],
		"budget":  budget,
	})

	c.JSON(http.StatusOK, SuccessResponse{
		Outcome:  outcome,
		Modal:    constants.SuccessModalID,
		Reset:    true,
		Announce: AnnounceSubmitted,
	})
}

// submittedValues reads a JSON object or a url-encoded form body into field
// values. JSON booleans become "on" when true.
func submittedValues(c *gin.Context) (map[string]string, error) {
	values := make(map[string]string)

	if strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		var raw map[string]interface{}
		if err := c.ShouldBindJSON(&raw); err != nil {
			return nil, err
		}
		for k, v := range raw {
			switch tv := v.(type) {
			case nil:
			case string:
				values[k] = tv
			case bool:
				if tv {
					values[k] = "on"
				}
			case float64:
				values[k] = fmt.Sprintf("%v", tv)
			default:
				return nil, fmt.Errorf("field %q: unsupported value", k)
			}
		}
		return values, nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	for k, vs := range c.Request.PostForm {
		if len(vs) > 0 {
			values[k] = vs[0]
		}
	}
	return values, nil
}
