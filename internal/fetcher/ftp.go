package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOption configures an FTPClient.
type FTPOption func(*FTPClient)

// WithFTPTimeout sets the dial timeout.
func WithFTPTimeout(d time.Duration) FTPOption {
	return func(c *FTPClient) { c.timeout = d }
}

// WithFTPLogger sets the logger.
func WithFTPLogger(l *zap.Logger) FTPOption {
	return func(c *FTPClient) { c.logger = l }
}

// FTPClient retrieves files from ftp:// sources so raw exports published on
// FTP mirrors can flow through the local-file ingestion path. Login is
// anonymous; government open-data mirrors do not authenticate.
type FTPClient struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewFTPClient creates an FTPClient. Default timeout is 30s.
func NewFTPClient(opts ...FTPOption) *FTPClient {
	c := &FTPClient{timeout: 30 * time.Second, logger: zap.L()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsFTPURL reports whether the source names an ftp:// location rather than
// a local path.
func IsFTPURL(raw string) bool {
	return strings.HasPrefix(raw, "ftp://")
}

// parseFTPURL extracts host (with port, default 21) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "fetcher: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("fetcher: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	path = u.Path
	if path == "" {
		return "", "", eris.New("fetcher: empty path in ftp url")
	}

	return host, path, nil
}

// ftpConnReader ties the response stream to its connection so closing the
// reader also disconnects.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "fetcher: close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "fetcher: quit ftp connection")
	}
	return nil
}

// Fetch connects, retrieves the file, and returns a reader. The caller must
// close it to release the connection.
func (c *FTPClient) Fetch(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	host, path, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("ftp: connecting", zap.String("host", host), zap.String("path", path))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(c.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: ftp dial")
	}

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "fetcher: ftp login")
	}

	resp, err := conn.Retr(path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "fetcher: ftp retrieve")
	}

	return &ftpConnReader{resp: resp, conn: conn}, nil
}

// FetchToFile downloads the FTP URL to a local file and returns bytes
// written. Used to stage remote raw CSVs before ingestion.
func (c *FTPClient) FetchToFile(ctx context.Context, ftpURL string, dest string) (int64, error) {
	rc, err := c.Fetch(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck

	file, err := os.Create(dest)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, rc)
	if err != nil {
		return n, eris.Wrap(err, "fetcher: write file")
	}

	c.logger.Info("ftp: downloaded",
		zap.String("url", ftpURL),
		zap.String("dest", dest),
		zap.Int64("bytes", n),
	)
	return n, nil
}
