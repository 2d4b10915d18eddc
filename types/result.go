package types

// ResultKind identifies which variant of a GatewayResult was produced.
type ResultKind string

const (
	// ResultSuccess carries the upstream payload verbatim.
	ResultSuccess ResultKind = "success"
	// ResultRejected means the upstream responded, but in a format the
	// calling agent cannot consume.
	ResultRejected ResultKind = "rejected"
	// ResultFailed means the transport failed or the upstream signalled an
	// error status.
	ResultFailed ResultKind = "failed"
)

// GatewayResult is the envelope returned for every fetch invocation.
// Exactly one variant is produced per invocation; the gateway never returns
// a bare payload and never lets an error escape uncaptured.
type GatewayResult struct {
	Kind ResultKind `json:"kind"`
	// Text is the verbatim upstream payload. Set only for ResultSuccess.
	Text string `json:"text,omitempty"`
	// Err describes the rejection or failure. Set for ResultRejected and
	// ResultFailed, nil for ResultSuccess.
	Err *Error `json:"error,omitempty"`
}

// SuccessResult wraps an upstream payload, unmodified.
func SuccessResult(text string) GatewayResult {
	return GatewayResult{Kind: ResultSuccess, Text: text}
}

// RejectedResult marks a payload whose declared format is unsuitable.
func RejectedResult(message string) GatewayResult {
	return GatewayResult{
		Kind: ResultRejected,
		Err:  NewError(ErrUnsupportedFormat, message),
	}
}

// FailedResult marks a transport or upstream-status failure.
func FailedResult(code ErrorCode, message string, cause error) GatewayResult {
	return GatewayResult{
		Kind: ResultFailed,
		Err:  WrapError(code, message, cause),
	}
}

// IsError reports whether the result must be flagged as an error to the
// host environment. Both rejections and failures set the flag; the calling
// agent distinguishes them by the error code.
func (r GatewayResult) IsError() bool {
	return r.Kind != ResultSuccess
}

// ContentBlock is one element of the ordered content sequence delivered to
// the host environment. The gateway only ever produces "text" blocks.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextBlock creates a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// ContentBlocks renders the result as the single text block handed back to
// the host environment.
func (r GatewayResult) ContentBlocks() []ContentBlock {
	if r.Kind == ResultSuccess {
		return []ContentBlock{TextBlock(r.Text)}
	}
	if r.Err != nil {
		return []ContentBlock{TextBlock(r.Err.Message)}
	}
	return []ContentBlock{TextBlock("")}
}
