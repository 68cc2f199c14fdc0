// Package systemd wraps sd_notify for running under a Type=notify unit.
// All calls are no-ops when NOTIFY_SOCKET is absent.
package systemd

import "github.com/coreos/go-systemd/v22/daemon"

// NotifyReady tells systemd the service finished starting up.
func NotifyReady() (bool, error) {
	return daemon.SdNotify(false, daemon.SdNotifyReady)
}

// NotifyStopping tells systemd a shutdown has begun.
func NotifyStopping() (bool, error) {
	return daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// NotifyStatus updates the free-form status line shown by systemctl.
func NotifyStatus(status string) (bool, error) {
	return daemon.SdNotify(false, "STATUS="+status)
}
