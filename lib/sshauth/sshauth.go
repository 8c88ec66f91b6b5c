// Package sshauth turns stored credentials into SSH auth methods,
// detecting the private key algorithm when key material is used.
package sshauth

import (
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"time"

	"getlog/lib/apperr"
	"getlog/lib/models"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

// AuthMaterial is a ready-to-use SSH auth method plus the detected key
// algorithm (empty for password auth).
type AuthMaterial struct {
	Method    ssh.AuthMethod
	Algorithm string
}

// keyAlgorithms is the trial order for key material. The algorithm is
// not declared out of band, so the first entry whose type matches the
// parsed key wins.
var keyAlgorithms = []struct {
	name    string
	matches func(key interface{}) bool
}{
	{"RSA", func(key interface{}) bool {
		_, ok := key.(*rsa.PrivateKey)
		return ok
	}},
	{"ED25519", func(key interface{}) bool {
		switch key.(type) {
		case ed25519.PrivateKey, *ed25519.PrivateKey:
			return true
		}
		return false
	}},
	{"ECDSA", func(key interface{}) bool {
		_, ok := key.(*ecdsa.PrivateKey)
		return ok
	}},
	{"DSA", func(key interface{}) bool {
		_, ok := key.(*dsa.PrivateKey)
		return ok
	}},
}

// Resolve builds an auth method from stored credentials. Password wins
// when both password and key material are present, matching how the
// secrets are provisioned.
func Resolve(creds *models.Credentials, logger *logrus.Logger) (*AuthMaterial, error) {
	switch {
	case creds.Password != "":
		return &AuthMaterial{Method: ssh.Password(creds.Password)}, nil

	case creds.ClientCert != "":
		pemBytes, err := base64.StdEncoding.DecodeString(creds.ClientCert)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindCredential, "client cert is not valid base64")
		}
		return resolveKey(pemBytes, logger)

	default:
		return nil, apperr.New(apperr.KindUnsupportedAuth, "credentials carry neither a password nor key material")
	}
}

func resolveKey(pemBytes []byte, logger *logrus.Logger) (*AuthMaterial, error) {
	key, err := ssh.ParseRawPrivateKey(pemBytes)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindUnsupportedAuth, "unsupported key format")
	}

	for _, algorithm := range keyAlgorithms {
		if !algorithm.matches(key) {
			continue
		}

		signer, err := ssh.NewSignerFromKey(key)
		if err != nil {
			return nil, apperr.Wrap(errors.Wrap(err, "failed to build signer"), apperr.KindUnsupportedAuth, "unsupported key format")
		}

		logger.WithFields(logrus.Fields{
			"algorithm": algorithm.name,
			"operation": "Resolve",
		}).Info("SSH key algorithm detected")

		return &AuthMaterial{Method: ssh.PublicKeys(signer), Algorithm: algorithm.name}, nil
	}

	return nil, apperr.New(apperr.KindUnsupportedAuth, "unsupported key format")
}

// ClientConfig assembles the SSH client configuration for a host. The
// targets are internal machines addressed purely by configuration, so
// host keys are not pinned.
func (m *AuthMaterial) ClientConfig(username string, timeout time.Duration) *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{m.Method},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
}
