package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// "Service" groups this app's secrets in the OS keychain.
	KeyringService = "leadgen"
)

// SMTPAccount is the keychain account name holding the app password for
// one sender identity.
func SMTPAccount(address string) string {
	return fmt.Sprintf("leadgen:smtp:%s", strings.ToLower(strings.TrimSpace(address)))
}

// IMAPAccount is the keychain account name for the reply-detection inbox.
func IMAPAccount(username, host string) string {
	return fmt.Sprintf("leadgen:imap:%s@%s", username, host)
}

func Get(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	pw, err := keyring.Get(KeyringService, account)
	if err != nil || strings.TrimSpace(pw) == "" {
		return "", errors.New("password not found in keychain")
	}
	return pw, nil
}

func Set(account, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, account, password)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}
