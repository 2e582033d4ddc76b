package auth

import "github.com/zalando/go-keyring"

func saveToKeyring(service, profile, data string) error {
	return keyring.Set(service, profile, data)
}

func loadFromKeyring(service, profile string) (string, error) {
	return keyring.Get(service, profile)
}

func deleteFromKeyring(service, profile string) error {
	return keyring.Delete(service, profile)
}
