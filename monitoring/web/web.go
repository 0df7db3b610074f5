// Package web holds the page served by the monitor.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

//go:embed dist/*
var staticAssets embed.FS

// DevModeEnv names the variable that makes the monitor serve the page from
// the source tree, so that it can be edited without rebuilding.
const DevModeEnv = "TEMPORA_MONITOR_DEV"

// GetAssets returns the static files of the page.
func GetAssets() http.FileSystem {
	if isDevelopmentMode() {
		_, file, _, ok := runtime.Caller(0)
		if !ok {
			panic("cannot locate the web assets")
		}

		dir := path.Join(path.Dir(file), "dist")
		logrus.WithField("dir", dir).Info("serving monitor assets from disk")

		return http.Dir(dir)
	}

	sub, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}

func isDevelopmentMode() bool {
	v, ok := os.LookupEnv(DevModeEnv)
	if !ok {
		return false
	}

	v = strings.ToLower(v)

	return v == "true" || v == "1"
}
