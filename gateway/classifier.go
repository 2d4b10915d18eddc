package gateway

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/fetchgate/types"
)

// HTMLRejectionMessage is the fixed explanation returned when the upstream
// declares an HTML content type. The body is discarded: agent-facing
// responses must be in an agent-cheap textual form, never raw markup.
const HTMLRejectionMessage = "Response was HTML, which isn't supported"

// Classify decides whether an upstream response may be surfaced to the
// caller. The checks run in strict linear order with no backtracking and no
// retries:
//
//  1. transport failure → Failed with the transport error
//  2. non-success status → Failed, upstream body embedded in the message
//  3. HTML content type → Rejected with the fixed explanation
//  4. otherwise → Success carrying the body verbatim
//
// The response body is fully consumed exactly once.
func Classify(resp *http.Response, err error) types.GatewayResult {
	if err != nil {
		return types.FailedResult(types.ErrTransport, err.Error(), err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.FailedResult(types.ErrTransport, fmt.Sprintf("reading response body: %v", readErr), readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Surface upstream error detail to the caller instead of discarding it.
		return types.FailedResult(types.ErrUpstreamStatus,
			fmt.Sprintf("upstream returned %s: %s", resp.Status, strings.TrimSpace(string(body))), nil)
	}

	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		return types.RejectedResult(HTMLRejectionMessage)
	}

	return types.SuccessResult(string(body))
}
