package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// HTTPTestCase drives one handler call and checks the API envelope it writes.
// ExpectedCode is the error.code of a failed call; an empty code with a 2xx
// status expects success=true. RequestID is set on the context before the
// handler runs and must come back in error.request_id.
type HTTPTestCase struct {
	Name           string
	Method         string
	Path           string
	Body           any
	Headers        map[string]string
	RequestID      string
	ExpectedStatus int
	ExpectedCode   string
	ExpectedFields []string
	ExpectedBody   map[string]any
	Setup          func(t *testing.T, tc *TestContext)
	Validate       func(t *testing.T, tc *TestContext)
}

// ErrorEnvelope is the error object of a failed API response
type ErrorEnvelope struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details"`
	RequestID string          `json:"request_id"`
}

// DetailsAs decodes the error details into T
func DetailsAs[T any](t *testing.T, e ErrorEnvelope) T {
	t.Helper()

	var out T
	require.NotEmpty(t, e.Details, "error carries no details")
	require.NoError(t, json.Unmarshal(e.Details, &out), "Failed to parse error details")
	return out
}

// Envelope is the response shape every handler writes
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorEnvelope  `json:"error"`
}

// RunHTTPTestCases runs each case as a subtest
func RunHTTPTestCases(t *testing.T, handler gin.HandlerFunc, cases []HTTPTestCase) {
	t.Helper()

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			RunHTTPTestCase(t, handler, tc)
		})
	}
}

// RunHTTPTestCase runs a single case against handler
func RunHTTPTestCase(t *testing.T, handler gin.HandlerFunc, tc HTTPTestCase) {
	t.Helper()

	var body io.Reader
	if tc.Body != nil {
		raw, err := json.Marshal(tc.Body)
		require.NoError(t, err, "Failed to marshal request body")
		body = bytes.NewReader(raw)
	}

	method := tc.Method
	if method == "" {
		method = http.MethodGet
	}
	path := tc.Path
	if path == "" {
		path = "/"
	}
	req := httptest.NewRequest(method, path, body)
	if tc.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range tc.Headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	c, engine := gin.CreateTestContext(w)
	c.Request = req

	testCtx := &TestContext{Context: c, Recorder: w, Engine: engine}
	if tc.RequestID != "" {
		testCtx.SetRequestID(tc.RequestID)
	}
	if tc.Setup != nil {
		tc.Setup(t, testCtx)
	}

	handler(c)

	if tc.ExpectedStatus != 0 {
		assert.Equal(t, tc.ExpectedStatus, w.Code, "Unexpected status code: %s", w.Body.String())
	}

	switch {
	case tc.ExpectedCode != "":
		e := AssertErrorResponse(t, testCtx, tc.ExpectedCode)
		if tc.RequestID != "" {
			assert.Equal(t, tc.RequestID, e.RequestID, "request id not echoed")
		}
		if len(tc.ExpectedFields) > 0 {
			fields := DetailsAs[map[string]string](t, e)
			for _, f := range tc.ExpectedFields {
				assert.Contains(t, fields, f, "missing field error")
			}
		}
	case tc.ExpectedStatus >= 200 && tc.ExpectedStatus < 300:
		AssertSuccessResponse(t, testCtx)
	}

	if tc.ExpectedBody != nil {
		actual := JSONResponse(t, testCtx)
		for key, want := range tc.ExpectedBody {
			assert.Equal(t, want, actual[key], "Unexpected value for key: %s", key)
		}
	}

	if tc.Validate != nil {
		tc.Validate(t, testCtx)
	}
}

// JSONResponse parses the response body as a generic JSON object
func JSONResponse(t *testing.T, tc *TestContext) map[string]any {
	t.Helper()

	var result map[string]any
	require.NoError(t, json.Unmarshal(tc.ResponseBody(), &result), "Failed to parse JSON response")
	return result
}

// JSONResponseAs parses the response body into T
func JSONResponseAs[T any](t *testing.T, tc *TestContext) T {
	t.Helper()

	var result T
	require.NoError(t, json.Unmarshal(tc.ResponseBody(), &result), "Failed to parse JSON response")
	return result
}

// DataAs asserts a successful envelope and decodes its data into T
func DataAs[T any](t *testing.T, tc *TestContext) T {
	t.Helper()

	env := AssertSuccessResponse(t, tc)
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out), "Failed to parse response data")
	return out
}

// AssertSuccessResponse asserts success=true with no error object
func AssertSuccessResponse(t *testing.T, tc *TestContext) Envelope {
	t.Helper()

	env := JSONResponseAs[Envelope](t, tc)
	assert.True(t, env.Success, "Expected success to be true: %s", tc.ResponseBody())
	assert.Nil(t, env.Error, "Expected no error")
	return env
}

// AssertErrorResponse asserts success=false with the given error code and
// returns the error object for further checks.
func AssertErrorResponse(t *testing.T, tc *TestContext, expectedCode string) ErrorEnvelope {
	t.Helper()

	env := JSONResponseAs[Envelope](t, tc)
	assert.False(t, env.Success, "Expected success to be false")
	require.NotNil(t, env.Error, "Expected error object in response")
	assert.Equal(t, expectedCode, env.Error.Code, "Unexpected error code")
	assert.NotEmpty(t, env.Error.Message, "error message is empty")
	return *env.Error
}
