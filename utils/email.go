package utils

import (
	"fmt"
	"net/smtp"
	"os"
)

// SendMail delivers an HTML email through the SMTP relay configured via
// EMAIL_HOST, EMAIL_PORT, EMAIL_USER and EMAIL_PASSWORD.
func SendMail(to string, subject string, html string) (bool, error) {
	host := os.Getenv("EMAIL_HOST")
	port := os.Getenv("EMAIL_PORT")
	user := os.Getenv("EMAIL_USER")
	password := os.Getenv("EMAIL_PASSWORD")

	if host == "" || port == "" || user == "" {
		return false, fmt.Errorf("email relay is not configured")
	}

	msg := []byte("To: " + to + "\r\n" +
		"From: Ediens <" + user + ">\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" + html + "\r\n")

	auth := smtp.PlainAuth("", user, password, host)
	if err := smtp.SendMail(host+":"+port, auth, user, []string{to}, msg); err != nil {
		return false, err
	}

	return true, nil
}
