package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"golang.org/x/time/rate"

	"github.com/swdee/go-surgtile/postprocess"
	"github.com/swdee/go-surgtile/preprocess"
)

const (
	// DefaultEndpoint is the hosted inference API base URL
	DefaultEndpoint = "https://detect.roboflow.com"
	// DefaultTimeout is the HTTP client timeout when none is configured
	DefaultTimeout = 30 * time.Second
	// maxErrorBody limits how much of a failed response body is kept in the
	// returned error
	maxErrorBody = 512
)

// RoboflowConfig defines the parameters for the hosted model client
type RoboflowConfig struct {
	// Endpoint is the base URL of the inference API
	Endpoint string
	// Model is the project and version of the hosted model in the form
	// "project/version", eg: "wound-detector-bc8ds/1"
	Model string
	// APIKey is the account API key, it is never logged
	APIKey string
	// Confidence is the minimum confidence (0.0 to 1.0) of detections the
	// model should report
	Confidence float64
	// Overlap is the IoU threshold (0.0 to 1.0) the model uses for its own
	// non-maximum suppression
	Overlap float64
	// Timeout bounds a single request when the caller's context has no
	// earlier deadline
	Timeout time.Duration
	// RateLimit is the maximum requests per second sent, 0 is unlimited
	RateLimit float64
	// Burst is the number of requests allowed to exceed RateLimit at once
	Burst int
	// JPEGQuality of the uploaded image
	JPEGQuality int
	// HTTPClient overrides the default HTTP client
	HTTPClient *http.Client
}

// Roboflow is a Detector backed by a hosted object detection model
type Roboflow struct {
	cfg      RoboflowConfig
	client   *http.Client
	url      string
	limiter  *rate.Limiter
	endpoint string
}

// roboflowResponse is the JSON payload returned by the inference API.
// Pointers are used to tell missing fields apart from zero values.
type roboflowResponse struct {
	Predictions *[]roboflowPrediction `json:"predictions"`
}

type roboflowPrediction struct {
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Width      *float64 `json:"width"`
	Height     *float64 `json:"height"`
	Confidence *float64 `json:"confidence"`
	Class      *string  `json:"class"`
}

// NewRoboflow returns a client for the hosted model described by cfg
func NewRoboflow(cfg RoboflowConfig) (*Roboflow, error) {

	if cfg.Model == "" {
		return nil, errors.New("model must be set as project/version")
	}

	if cfg.APIKey == "" {
		return nil, errors.New("api key must be set")
	}

	if cfg.Confidence < 0 || cfg.Confidence > 1 {
		return nil, errors.Errorf("confidence must be in range [0,1], got %v", cfg.Confidence)
	}

	if cfg.Overlap < 0 || cfg.Overlap > 1 {
		return nil, errors.Errorf("overlap must be in range [0,1], got %v", cfg.Overlap)
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/") + "/" + strings.Trim(cfg.Model, "/")

	if _, err := url.Parse(endpoint); err != nil {
		return nil, errors.Wrap(err, "invalid endpoint")
	}

	client := cfg.HTTPClient

	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	r := &Roboflow{
		cfg:      cfg,
		client:   client,
		endpoint: endpoint,
	}

	r.url = endpoint + "?" + r.query().Encode()

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return r, nil
}

// query returns the request parameters.  The API takes thresholds as
// percentages.
func (r *Roboflow) query() url.Values {
	q := url.Values{}
	q.Set("api_key", r.cfg.APIKey)
	q.Set("confidence", strconv.Itoa(toPercent(r.cfg.Confidence)))
	q.Set("overlap", strconv.Itoa(toPercent(r.cfg.Overlap)))
	q.Set("format", "json")
	return q
}

// Endpoint returns the model URL without credentials
func (r *Roboflow) Endpoint() string {
	return r.endpoint
}

// Detect encodes the image to JPEG and sends it to the hosted model
func (r *Roboflow) Detect(ctx context.Context, img gocv.Mat) ([]postprocess.Detection, error) {

	data, err := preprocess.EncodeJPEG(img, r.cfg.JPEGQuality)

	if err != nil {
		return nil, err
	}

	return r.DetectJPEG(ctx, data)
}

// DetectJPEG sends already encoded JPEG data to the hosted model
func (r *Roboflow) DetectJPEG(ctx context.Context, data []byte) ([]postprocess.Detection, error) {

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrapf(ErrDetectorUnavailable, "rate limit wait: %v", err)
		}
	}

	body, contentType, err := multipartBody(data)

	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, body)

	if err != nil {
		return nil, errors.Wrap(err, "error creating request")
	}

	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)

	if err != nil {
		return nil, errors.Wrap(ErrDetectorUnavailable, redact(err))
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.Wrapf(ErrDetectorUnavailable, "status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	payload, err := io.ReadAll(resp.Body)

	if err != nil {
		return nil, errors.Wrap(ErrDetectorUnavailable, redact(err))
	}

	return parseResponse(payload)
}

// multipartBody builds a form with the image under the "file" field
func multipartBody(data []byte) (io.Reader, string, error) {

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "tile.jpg")

	if err != nil {
		return nil, "", errors.Wrap(err, "error creating form file")
	}

	if _, err := part.Write(data); err != nil {
		return nil, "", errors.Wrap(err, "error writing form file")
	}

	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "error closing multipart writer")
	}

	return &buf, w.FormDataContentType(), nil
}

// parseResponse converts the API payload into detections
func parseResponse(payload []byte) ([]postprocess.Detection, error) {

	var res roboflowResponse

	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, errors.Wrapf(ErrDetectorMalformedResponse, "invalid json: %v", err)
	}

	if res.Predictions == nil {
		return nil, errors.Wrap(ErrDetectorMalformedResponse, "missing predictions")
	}

	dets := make([]postprocess.Detection, 0, len(*res.Predictions))

	for i, p := range *res.Predictions {
		if p.X == nil || p.Y == nil || p.Width == nil || p.Height == nil ||
			p.Confidence == nil || p.Class == nil {
			return nil, errors.Wrapf(ErrDetectorMalformedResponse,
				"prediction %d missing required fields", i)
		}

		if *p.Width < 0 || *p.Height < 0 || *p.Confidence < 0 {
			return nil, errors.Wrapf(ErrDetectorMalformedResponse,
				"prediction %d has negative size or confidence", i)
		}

		dets = append(dets, postprocess.Detection{
			X:          *p.X,
			Y:          *p.Y,
			Width:      *p.Width,
			Height:     *p.Height,
			Confidence: normalizeConfidence(*p.Confidence),
			Class:      *p.Class,
		})
	}

	return dets, nil
}

// toPercent converts a probability into the integer percentage the API
// expects
func toPercent(p float64) int {
	return int(math.Round(p * 100))
}

// normalizeConfidence returns the confidence as a probability, values above
// 1 are assumed to be percentages
func normalizeConfidence(c float64) float64 {
	if c > 1 {
		return math.Min(c/100, 1)
	}
	return c
}

// redact returns the error text without the request URL, which carries the
// API key
func redact(err error) string {

	var ue *url.Error

	if errors.As(err, &ue) {
		if ue.Timeout() {
			return ue.Op + " timeout: " + ue.Err.Error()
		}
		return ue.Op + ": " + ue.Err.Error()
	}

	return err.Error()
}
