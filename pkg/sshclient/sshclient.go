package sshclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/cuemby/catena/pkg/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// DefaultPort is used when an address carries no port
const DefaultPort = "22"

// Config describes how to reach a node
type Config struct {
	// User defaults to "ubuntu"
	User string
	// Addr is the node address, host or host:port
	Addr string
	// Key is the node's PEM private key
	Key []byte

	// JumpAddr is the optional jumpbox the node is reached through
	JumpAddr string
	JumpKey  []byte

	// Timeout bounds each TCP connect and handshake, default 30s
	Timeout time.Duration
	// HostKeyCallback verifies server keys; nil accepts any key
	HostKeyCallback ssh.HostKeyCallback
}

// Client is an SSH connection to a node, possibly tunneled via a jumpbox
type Client struct {
	target *ssh.Client
	jump   *ssh.Client
}

// Dial connects to the node described by cfg
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.User == "" {
		cfg.User = "ubuntu"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HostKeyCallback == nil {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	}
	addr := withPort(cfg.Addr)
	logger := log.WithComponent("ssh").With().Str("addr", addr).Logger()

	targetCfg, err := clientConfig(cfg, cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("node key: %w", err)
	}

	c := &Client{}
	var conn net.Conn
	if cfg.JumpAddr != "" {
		jumpCfg, err := clientConfig(cfg, cfg.JumpKey)
		if err != nil {
			return nil, fmt.Errorf("jumpbox key: %w", err)
		}
		jumpAddr := withPort(cfg.JumpAddr)
		raw, err := dialTCP(ctx, jumpAddr, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		if c.jump, err = handshake(ctx, raw, jumpAddr, jumpCfg, cfg.Timeout); err != nil {
			return nil, fmt.Errorf("jumpbox %s: %w", jumpAddr, err)
		}
		logger.Debug().Str("jumpbox", jumpAddr).Msg("Connected to jumpbox")

		dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		conn, err = c.jump.DialContext(dialCtx, "tcp", addr)
		cancel()
		if err != nil {
			_ = c.jump.Close()
			return nil, fmt.Errorf("tunnel to %s: %w", addr, err)
		}
	} else {
		if conn, err = dialTCP(ctx, addr, cfg.Timeout); err != nil {
			return nil, err
		}
	}

	if c.target, err = handshake(ctx, conn, addr, targetCfg, cfg.Timeout); err != nil {
		if c.jump != nil {
			_ = c.jump.Close()
		}
		return nil, fmt.Errorf("node %s: %w", addr, err)
	}
	logger.Debug().Msg("Connected to node")
	return c, nil
}

func clientConfig(cfg Config, key []byte) (*ssh.ClientConfig, error) {
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: cfg.HostKeyCallback,
		Timeout:         cfg.Timeout,
	}, nil
}

func dialTCP(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

// handshake closes conn on failure
func handshake(ctx context.Context, conn net.Conn, addr string, cfg *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)
	sc, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(sc, chans, reqs), nil
}

func withPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, DefaultPort)
}

// Run executes cmd on the node and returns its combined output
func (c *Client) Run(ctx context.Context, cmd string) ([]byte, error) {
	session, err := c.target.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	stop := context.AfterFunc(ctx, func() { _ = session.Close() })
	defer stop()

	out, err := session.CombinedOutput(cmd)
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	return out, err
}

// Shell runs an interactive login shell. When in is a terminal it is put in
// raw mode and a PTY of the same size is requested.
func (c *Client) Shell(in io.Reader, out, errOut io.Writer) error {
	session, err := c.target.NewSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw terminal: %w", err)
		}
		defer func() { _ = term.Restore(fd, state) }()

		width, height, err := term.GetSize(fd)
		if err != nil {
			width, height = 80, 24
		}
		termType := os.Getenv("TERM")
		if termType == "" {
			termType = "xterm-256color"
		}
		modes := ssh.TerminalModes{
			ssh.ECHO:          1,
			ssh.TTY_OP_ISPEED: 14400,
			ssh.TTY_OP_OSPEED: 14400,
		}
		if err := session.RequestPty(termType, height, width, modes); err != nil {
			return fmt.Errorf("request pty: %w", err)
		}
	}

	session.Stdin = in
	session.Stdout = out
	session.Stderr = errOut
	if err := session.Shell(); err != nil {
		return fmt.Errorf("start shell: %w", err)
	}
	return session.Wait()
}

// Close tears down the node connection and the jumpbox tunnel
func (c *Client) Close() error {
	err := c.target.Close()
	if c.jump != nil {
		if jerr := c.jump.Close(); err == nil {
			err = jerr
		}
	}
	return err
}
