package hostregistry

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/ssh"

	"dockerpilot/internal/apierrors"
	"dockerpilot/internal/dockerclient"
)

const defaultRemoteDockerSocket = "/var/run/docker.sock"

// dialTimeout bounds the initial TCP+SSH handshake; once established the
// connection is held for the lifetime of the operation that resolved it.
const dialTimeout = 15 * time.Second

// Resolver turns a HostRecord + its decrypted Secret into a live
// dockerclient.API, negotiating whichever SSH auth method the record's
// AuthKind calls for.
type Resolver struct{}

// NewResolver returns a Resolver. It holds no state; every Resolve call is
// independent, matching the "connections are not pooled" rule.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns a client bound to record, or a typed error:
// daemon_unavailable when the Docker client cannot be created, and
// auth_rejected or unreachable when the auth method cannot be built or
// the SSH connection fails (see classifySSHError). totp_required and
// daemon_error are not returned.
func (res *Resolver) Resolve(ctx context.Context, record HostRecord, secret Secret) (dockerclient.API, error) {
	if record.ID == LocalHostID {
		client, err := dockerclient.NewLocal(ctx)
		if err != nil {
			return nil, apierrors.New("Resolve", apierrors.KindDaemonUnavailable, err)
		}
		return client, nil
	}

	authMethod, err := authMethodFor(record, secret)
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            record.Username,
		Auth:            []ssh.AuthMethod{authMethod},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint: gosec — host key pinning is out of scope
		Timeout:         dialTimeout,
	}

	conn, err := ssh.Dial("tcp", record.Address, sshConfig)
	if err != nil {
		return nil, classifySSHError(err)
	}

	socketPath := record.DockerSocketPath
	if socketPath == "" {
		socketPath = defaultRemoteDockerSocket
	}

	dial := func(ctx context.Context) (net.Conn, error) {
		return conn.Dial("unix", socketPath)
	}
	closeTunnel := conn.Close

	client, err := dockerclient.NewOverDialer(record.ID, dial, closeTunnel)
	if err != nil {
		_ = closeTunnel()
		return nil, apierrors.New("Resolve", apierrors.KindDaemonUnavailable, err)
	}
	return client, nil
}

func authMethodFor(record HostRecord, secret Secret) (ssh.AuthMethod, error) {
	switch record.AuthKind {
	case AuthPassword:
		return ssh.Password(secret.Password), nil

	case AuthKey:
		signer, err := ssh.ParsePrivateKey([]byte(secret.PrivateKeyPEM))
		if err != nil {
			return nil, apierrors.New("Resolve", apierrors.KindAuthRejected, err)
		}
		return ssh.PublicKeys(signer), nil

	case AuthKeyPassphrase:
		signer, err := ssh.ParsePrivateKeyWithPassphrase([]byte(secret.PrivateKeyPEM), []byte(secret.Passphrase))
		if err != nil {
			return nil, apierrors.New("Resolve", apierrors.KindAuthRejected, err)
		}
		return ssh.PublicKeys(signer), nil

	case AuthPasswordTOTP:
		return ssh.KeyboardInteractive(totpChallenge(secret)), nil

	default:
		return nil, apierrors.New("Resolve", apierrors.KindAuthRejected, fmt.Errorf("unsupported auth kind %q", record.AuthKind))
	}
}

// totpChallenge answers the SSH server's keyboard-interactive prompts: the
// first question is assumed to be the password, the second the TOTP code,
// computed fresh against the stored shared secret so it is consumed
// exactly once per connection attempt.
func totpChallenge(secret Secret) ssh.KeyboardInteractiveChallenge {
	return func(name, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			switch i {
			case 0:
				answers[i] = secret.Password
			case 1:
				code, err := totp.GenerateCode(secret.TOTPSecret, time.Now())
				if err != nil {
					return nil, apierrors.New("Resolve", apierrors.KindTOTPInvalid, err)
				}
				answers[i] = code
			default:
				answers[i] = ""
			}
		}
		return answers, nil
	}
}

func classifySSHError(err error) error {
	if _, ok := err.(*ssh.ExitMissingError); ok {
		return apierrors.New("Resolve", apierrors.KindUnreachable, err)
	}

	switch e := err.(type) {
	case *net.OpError:
		return apierrors.New("Resolve", apierrors.KindUnreachable, e)
	}

	// ssh reports rejected credentials as an *ssh.AuthError or an error
	// mentioning "unable to authenticate"; any "handshake failed" error is
	// also treated as auth_rejected, and anything else as unreachable.
	if isAuthFailure(err) {
		return apierrors.New("Resolve", apierrors.KindAuthRejected, err)
	}
	return apierrors.New("Resolve", apierrors.KindUnreachable, err)
}

func isAuthFailure(err error) bool {
	if _, ok := err.(*ssh.AuthError); ok {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "handshake failed")
}
