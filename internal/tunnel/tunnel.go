// Package tunnel provides the SSH local-forward used to reach PostgreSQL
// through a bastion host.
package tunnel

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"example.com/jodi/services/whatsapp/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
)

const keepaliveInterval = 10 * time.Second

// Tunnel forwards a loopback listener to a remote address through an SSH
// bastion. It is acquired once per run and closed on exit.
type Tunnel struct {
	client   *ssh.Client
	listener net.Listener
	cancel   context.CancelFunc
	group    *errgroup.Group
}

// Dial connects to the bastion and starts forwarding a local ephemeral port
// to remoteHost:remotePort.
func Dial(ctx context.Context, cfg config.SSHConfig, remoteHost string, remotePort int) (*Tunnel, error) {
	key, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read ssh key %s", cfg.KeyPath)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse ssh key")
	}

	sshConfig := &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{ssh.PublicKeys(signer)},
		// The bastion is addressed by IP from ephemeral CI runners; host key
		// pinning is not practical there.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         15 * time.Second,
	}

	bastionAddr := net.JoinHostPort(cfg.BastionHost, fmt.Sprint(cfg.BastionPort))
	client, err := ssh.Dial("tcp", bastionAddr, sshConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial bastion %s", bastionAddr)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to open local listener")
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, runCtx := errgroup.WithContext(runCtx)

	t := &Tunnel{
		client:   client,
		listener: listener,
		cancel:   cancel,
		group:    g,
	}

	remoteAddr := net.JoinHostPort(remoteHost, fmt.Sprint(remotePort))
	g.Go(func() error { return t.accept(runCtx, remoteAddr) })
	g.Go(func() error { return t.keepalive(runCtx) })

	log.Info().
		Str("bastion", bastionAddr).
		Str("local", listener.Addr().String()).
		Str("remote", remoteAddr).
		Msg("SSH tunnel established")

	return t, nil
}

// LocalAddr returns the loopback endpoint the database client should dial.
func (t *Tunnel) LocalAddr() (host string, port int) {
	addr := t.listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// Close tears down the listener, the forwarding goroutines and the SSH
// session.
func (t *Tunnel) Close() error {
	t.cancel()
	t.listener.Close()
	err := t.client.Close()
	t.group.Wait()
	log.Info().Msg("SSH tunnel closed")
	return err
}

func (t *Tunnel) accept(ctx context.Context, remoteAddr string) error {
	for {
		local, err := t.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "tunnel listener accept failed")
		}

		remote, err := t.client.Dial("tcp", remoteAddr)
		if err != nil {
			local.Close()
			return errors.Wrapf(err, "failed to dial %s through bastion", remoteAddr)
		}

		t.group.Go(func() error {
			pipe(local, remote)
			return nil
		})
	}
}

func (t *Tunnel) keepalive(ctx context.Context) error {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, _, err := t.client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return errors.Wrap(err, "ssh keepalive failed")
			}
		}
	}
}

func pipe(a, b net.Conn) {
	done := make(chan struct{}, 2)
	go func() {
		io.Copy(a, b)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(b, a)
		done <- struct{}{}
	}()
	<-done
	a.Close()
	b.Close()
	<-done
}
