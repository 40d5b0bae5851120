package llm

import (
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	smithy "github.com/aws/smithy-go"

	internalerrors "github.com/kvkthecreator/yarnnn/internal/errors"
)

// classifyErr maps a provider SDK error onto the Kind taxonomy so
// pkg/retry knows whether to back off and retry. nil passes through
// unchanged; anything not recognized as transient or a permission
// failure is returned as-is (retry.Do then fails the call immediately).
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var aerr *sdk.Error
	if errors.As(err, &aerr) {
		switch aerr.StatusCode {
		case 429:
			return internalerrors.Transient("llm_chat", err)
		case 401, 403:
			return internalerrors.Permission("llm_chat", err)
		default:
			if aerr.StatusCode >= 500 {
				return internalerrors.Transient("llm_chat", err)
			}
		}
		return err
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException", "ServiceUnavailableException":
			return internalerrors.Transient("llm_chat", err)
		case "AccessDeniedException", "UnrecognizedClientException":
			return internalerrors.Permission("llm_chat", err)
		}
	}
	return err
}
