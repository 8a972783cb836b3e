package scanrunner

import (
	"context"
	"errors"
	"net"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// throttleCodes are AWS error codes that mean "slow down, try again", not
// "this object is broken".
var throttleCodes = map[string]struct{}{
	"Throttling":                             {},
	"ThrottlingException":                    {},
	"RequestThrottled":                       {},
	"TooManyRequestsException":               {},
	"ProvisionedThroughputExceededException": {},
	"SlowDown":                               {},
	"RequestTimeout":                         {},
	"ServiceUnavailable":                     {},
	"InternalError":                          {},
}

// transient reports whether err is worth retrying through queue redelivery.
// Everything not recognizably transient is treated as object-fatal: a bad
// object should reach a terminal row, not cycle until the dead-letter cap.
func transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() >= 500 {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := throttleCodes[apiErr.ErrorCode()]; ok {
			return true
		}
		return apiErr.ErrorFault() == smithy.FaultServer
	}
	return false
}
