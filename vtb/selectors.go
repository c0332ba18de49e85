package vtb

// DOM conventions of the portal's history UI, encoded as configuration-like
// constants. Resilience to a full site redesign is out of scope; these are
// the knobs to touch when markup drifts.
const (
	selRow        = `[data-test-id="operation-cell"]`
	selPhoneInput = `input[name="phoneInput"]`
	selOtpInput   = `[data-test-id="auth-passcode"] input[name="otpInput"]`
	selPinInput   = `[data-test-id="passcode"] input[name="codeInput"]`
	selFatalPage  = `[data-test-id="error-page"]`
	selRelogin    = `[data-test-id="error-page"] button`
	selDetailHead = `[data-test-id="operation-details"] h2`

	txtShowMore = "Показать ещё"
	txtRelogin  = "Войти заново"
	txtDetails  = "Детали операции"
)
