package service

// Client-facing messages.
const (
	msgInvalidCredentials = "Invalid email or password"
	msgAccountDisabled    = "Account is disabled, contact the administrator"
	msgTokenInvalid       = "Token is invalid or expired"
	msgFieldBlank         = "This field may not be blank."
	msgEmailTaken         = "user with this email already exists."
	msgUserNotExists      = "User does not exist"
	msgResetLinkSent      = "We have sent you a link to reset your password"
	msgResetMailFailed    = "Could not send the password reset email, try again later"
	msgRedirectNotAllowed = "Redirect host is not allowed"
	msgTicketValid        = "Credentials valid"
	msgTicketInvalid      = "Token is not valid, please request a new one"
	msgResetLinkInvalid   = "Reset link is invalid"
	msgPasswordResetDone  = "Password reset success"
	msgResetUnavailable   = "Could not reset the password, try again later"
	msgProfileNotExists   = "Profile does not exist"
	msgHabitNotFound      = "Not found."

	resetMailSubject = "Reset your password"
)
