package tiger

import (
	"archive/zip"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DownloadShapefile fetches a county ADDRFEAT archive over HTTP or FTP and
// extracts it, returning the path to the .shp file. An archive already
// present on disk is reused, so interrupted runs resume without
// re-downloading.
func DownloadShapefile(ctx context.Context, url, destDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "tiger.download"),
		zap.String("url", url),
	)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "tiger: create dest dir")
	}

	zipName := url[strings.LastIndex(url, "/")+1:]
	zipPath := filepath.Join(destDir, zipName)

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("archive already on disk", zap.String("path", zipPath))
	} else {
		log.Info("downloading ADDRFEAT archive")
		fetch := fetchFile
		if strings.HasPrefix(url, "ftp://") {
			fetch = fetchFileFTP
		}
		if err := fetch(ctx, url, zipPath); err != nil {
			return "", eris.Wrap(err, "tiger: download archive")
		}
	}

	extractDir := filepath.Join(destDir, strings.TrimSuffix(zipName, ".zip"))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "tiger: create extract dir")
	}
	if err := extractArchive(zipPath, extractDir); err != nil {
		return "", eris.Wrap(err, "tiger: extract archive")
	}

	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return "", eris.Wrap(err, "tiger: read extract dir")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".shp") {
			return filepath.Join(extractDir, e.Name()), nil
		}
	}
	return "", eris.Errorf("tiger: no .shp file in %s", extractDir)
}

func fetchFile(ctx context.Context, url, dest string) error {
	client := &http.Client{Timeout: 10 * time.Minute}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "create file")
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, resp.Body); err != nil {
		return eris.Wrap(err, "write file")
	}
	return nil
}

// fetchFileFTP retrieves an ftp:// URL with an anonymous login. The Census
// mirror at ftp2.census.gov serves the same ADDRFEAT archives as the HTTPS
// site and holds up better under bulk pulls.
func fetchFileFTP(ctx context.Context, ftpURL, dest string) error {
	host, path, err := splitFTPURL(ftpURL)
	if err != nil {
		return err
	}

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(30*time.Second), ftp.DialWithContext(ctx))
	if err != nil {
		return eris.Wrap(err, "ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		return eris.Wrap(err, "ftp login")
	}

	resp, err := conn.Retr(path)
	if err != nil {
		return eris.Wrap(err, "ftp retrieve")
	}
	defer resp.Close() //nolint:errcheck

	f, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "create file")
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, resp); err != nil {
		return eris.Wrap(err, "write file")
	}
	return nil
}

// splitFTPURL extracts host (with port) and path from an FTP URL.
func splitFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}
	if u.Path == "" {
		return "", "", eris.New("empty path in ftp url")
	}
	return host, u.Path, nil
}

// extractArchive unpacks every regular file in the archive flat into
// destDir. ADDRFEAT archives hold the .shp/.shx/.dbf/.prj set with no
// directory structure.
func extractArchive(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := extractEntry(f, filepath.Join(destDir, filepath.Base(f.Name))); err != nil {
			return eris.Wrapf(err, "extract %s", f.Name)
		}
	}
	return nil
}

func extractEntry(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	_, err = io.Copy(out, rc)
	return err
}
