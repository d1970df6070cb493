package mail

import "fmt"

type Message struct {
	To      string
	Subject string
	Body    string
}

// RecoveryMessage carries both the reset-password and the edit-account
// link for a freshly issued token.
func RecoveryMessage(baseURL string, to string, token string) Message {
	resetLink := fmt.Sprintf("%s/account/reset?token=%s", baseURL, token)
	updateLink := fmt.Sprintf("%s/account/update?token=%s", baseURL, token)

	body := fmt.Sprintf(
		"Someone requested access recovery for your account.\n\n"+
			"Reset your password:\n%s\n\n"+
			"Or edit your account details:\n%s\n\n"+
			"The link is valid for one hour and can be used once. "+
			"If you did not ask for this, you can ignore this message.\n",
		resetLink, updateLink)

	return Message{
		To:      to,
		Subject: "Account recovery",
		Body:    body,
	}
}
