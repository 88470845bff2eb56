// Public domain.

package tap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Credentials for the archive login.
type Credentials struct {
	User, Password string
}

// ReadCredentials reads a credentials file: user name on the first line,
// password on the second.
func ReadCredentials(path string) (Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return Credentials{}, err
	}
	defer f.Close()
	var lines []string
	for s := bufio.NewScanner(f); s.Scan() && len(lines) < 2; {
		lines = append(lines, strings.TrimSpace(s.Text()))
	}
	if len(lines) < 2 || lines[0] == "" {
		return Credentials{}, fmt.Errorf("%s: want user and password lines", path)
	}
	return Credentials{User: lines[0], Password: lines[1]}, nil
}

// Login opens an archive session.
func (c *Client) Login(ctx context.Context, cr Credentials) error {
	resp, err := c.post(ctx, "/login", url.Values{
		"username": {cr.User},
		"password": {cr.Password},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus("login", resp)
}

// Logout closes the archive session.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.post(ctx, "/logout", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus("logout", resp)
}

// WithLogin logs in, runs fn, and logs out.
//
// Once login succeeds, logout happens however fn returns, and a logout
// error is joined to fn's error.  Logout is not cancelled by ctx.
func (c *Client) WithLogin(ctx context.Context, cr Credentials, fn func(ctx context.Context) error) (err error) {
	if err = c.Login(ctx, cr); err != nil {
		return err
	}
	defer func() {
		if lerr := c.Logout(context.WithoutCancel(ctx)); lerr != nil {
			err = errors.Join(err, lerr)
		}
	}()
	return fn(ctx)
}
