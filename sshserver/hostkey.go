package sshserver

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"pkt.systems/pslog"
)

const hostKeyComment = "snippad terminal host key"

// HostKey is the identity the terminal server presents. Clients pin its
// fingerprint, so it is kept on disk across restarts.
type HostKey struct {
	Signer  ssh.Signer
	Path    string
	Created bool
}

// Fingerprint returns the SHA256 fingerprint shown to users connecting to a
// workspace terminal.
func (k HostKey) Fingerprint() string {
	if k.Signer == nil {
		return ""
	}
	return ssh.FingerprintSHA256(k.Signer.PublicKey())
}

// EnsureHostKey loads the ed25519 host key at path, generating it on first
// start. A key readable by other users is still used but logged.
func EnsureHostKey(log pslog.Logger, path string) (HostKey, error) {
	if log == nil {
		log = pslog.NoopLogger()
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return HostKey{}, errors.New("ssh host key path is required")
	}
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.IsDir() {
			return HostKey{}, fmt.Errorf("ssh host key %s is a directory", path)
		}
		if info.Mode().Perm()&0o077 != 0 {
			log.Warn("ssh host key permissions too open", "path", path, "mode", info.Mode().Perm().String())
		}
		signer, err := readHostKey(path)
		if err != nil {
			return HostKey{}, err
		}
		key := HostKey{Signer: signer, Path: path}
		log.Debug("ssh host key loaded", "path", path, "fingerprint", key.Fingerprint())
		return key, nil
	case !os.IsNotExist(err):
		return HostKey{}, fmt.Errorf("stat host key: %w", err)
	}

	signer, err := writeHostKey(path)
	if err != nil {
		return HostKey{}, err
	}
	key := HostKey{Signer: signer, Path: path, Created: true}
	log.Info("ssh host key generated", "path", path, "fingerprint", key.Fingerprint())
	return key, nil
}

// writeHostKey generates a key into a temporary file next to path and renames
// it into place, so a crash never leaves a truncated key behind.
func writeHostKey(path string) (ssh.Signer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create host key dir: %w", err)
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, hostKeyComment)
	if err != nil {
		return nil, fmt.Errorf("marshal host key: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".host_key-*")
	if err != nil {
		return nil, fmt.Errorf("write host key: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("chmod host key: %w", err)
	}
	if err := pem.Encode(tmp, block); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("encode host key: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close host key: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return nil, fmt.Errorf("install host key: %w", err)
	}
	return ssh.NewSignerFromKey(priv)
}

func readHostKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read host key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse host key %s: %w", path, err)
	}
	return signer, nil
}
