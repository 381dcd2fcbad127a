package app

import "strings"

// NormalizeLocalViewer fills in a loopback host for bare ":port" and
// wildcard addresses and returns the listen address and browser URL.
func NormalizeLocalViewer(cfgAddr string) (listenAddr string, url string) {
	a := strings.TrimSpace(cfgAddr)
	if strings.HasPrefix(a, ":") {
		a = "127.0.0.1" + a
	}
	if strings.HasPrefix(a, "0.0.0.0:") {
		a = "127.0.0.1:" + strings.TrimPrefix(a, "0.0.0.0:")
	}
	return a, "http://" + a
}

func logBanner(dir, cfgPath, url string) {
	log.Info("────────────────────────────────────────")
	log.Info("Scarlett mixer control plane")
	log.Infof(" Console dir : %s", dir)
	log.Infof(" Config file : %s", cfgPath)
	log.Infof(" Viewer      : %s", url)
	log.Info("────────────────────────────────────────")
}
