package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/weiwei-tsao/form-relay/apps/api/pkg/model"
)

var (
	// ErrUnsupportedContentType is returned for bodies no parser is registered for.
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrInvalidBody is returned when a registered parser cannot decode the body.
	ErrInvalidBody = errors.New("invalid request body")
)

// ParseFunc extracts a submission from the request body.
type ParseFunc func(c *gin.Context) (model.SubmissionRequest, error)

// ParserRegistry dispatches body parsing on the declared media type.
type ParserRegistry struct {
	parsers  map[string]ParseFunc
	fallback string
}

// NewParserRegistry returns a registry with JSON, url-encoded and multipart
// parsers. Requests without a Content-Type are parsed as JSON.
func NewParserRegistry() *ParserRegistry {
	r := &ParserRegistry{parsers: map[string]ParseFunc{}, fallback: binding.MIMEJSON}
	r.Register(binding.MIMEJSON, parseJSON)
	r.Register(binding.MIMEPOSTForm, parseForm(binding.Form))
	r.Register(binding.MIMEMultipartPOSTForm, parseForm(binding.FormMultipart))
	return r
}

// Register adds or replaces the parser for mediaType.
func (r *ParserRegistry) Register(mediaType string, fn ParseFunc) {
	r.parsers[strings.ToLower(mediaType)] = fn
}

// Parse picks a parser by Content-Type and runs it.
func (r *ParserRegistry) Parse(c *gin.Context) (model.SubmissionRequest, error) {
	mediaType := r.fallback
	if ct := strings.TrimSpace(c.GetHeader("Content-Type")); ct != "" {
		parsed, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return model.SubmissionRequest{}, fmt.Errorf("%w: %s", ErrUnsupportedContentType, ct)
		}
		mediaType = strings.ToLower(parsed)
	}
	fn, ok := r.parsers[mediaType]
	if !ok {
		return model.SubmissionRequest{}, fmt.Errorf("%w: %s", ErrUnsupportedContentType, mediaType)
	}
	return fn(c)
}

type jsonSubmission struct {
	Email string `json:"email"`
	Token string `json:"g-recaptcha-response"`
}

type formSubmission struct {
	Email string `form:"email"`
	Token string `form:"g-recaptcha-response"`
}

func parseJSON(c *gin.Context) (model.SubmissionRequest, error) {
	var body jsonSubmission
	if err := c.ShouldBindJSON(&body); err != nil {
		// An empty body is an empty submission, not a malformed one.
		if errors.Is(err, io.EOF) {
			return model.SubmissionRequest{}, nil
		}
		return model.SubmissionRequest{}, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return model.SubmissionRequest{
		Email:             strings.TrimSpace(body.Email),
		VerificationToken: strings.TrimSpace(body.Token),
	}, nil
}

func parseForm(b binding.Binding) ParseFunc {
	return func(c *gin.Context) (model.SubmissionRequest, error) {
		var body formSubmission
		if err := c.ShouldBindWith(&body, b); err != nil {
			return model.SubmissionRequest{}, fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
		return model.SubmissionRequest{
			Email:             strings.TrimSpace(body.Email),
			VerificationToken: strings.TrimSpace(body.Token),
		}, nil
	}
}
