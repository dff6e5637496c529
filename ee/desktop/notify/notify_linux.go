//go:build linux
// +build linux

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/godbus/dbus/v5"
)

type dbusNotifier struct {
	slogger *slog.Logger
}

const (
	notificationServiceObj       = "/org/freedesktop/Notifications"
	notificationServiceInterface = "org.freedesktop.Notifications"
)

func newOsSpecificNotifier(slogger *slog.Logger) *dbusNotifier {
	return &dbusNotifier{
		slogger: slogger,
	}
}

func (d *dbusNotifier) SendNotification(n Notification) error {
	if err := d.sendNotificationViaDbus(n); err == nil {
		return nil
	}

	return d.sendNotificationViaNotifySend(n)
}

// See: https://specifications.freedesktop.org/notification-spec/notification-spec-latest.html
func (d *dbusNotifier) sendNotificationViaDbus(n Notification) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		d.slogger.Log(context.TODO(), slog.LevelDebug,
			"could not connect to dbus, will try alternate method of notification",
			"err", err,
		)
		return fmt.Errorf("could not connect to dbus: %w", err)
	}
	defer conn.Close()

	notificationsService := conn.Object(notificationServiceInterface, notificationServiceObj)
	call := notificationsService.Call("org.freedesktop.Notifications.Notify",
		0,          // no flags
		"RitmoFit", // app_name
		uint32(0),  // replaces_id -- 0 means this notification won't replace any existing notifications
		"",         // app_icon
		n.Title,    // summary
		n.Body,     // body
		[]string{}, // actions
		map[string]dbus.Variant{
			"x-ritmofit-notification-id": dbus.MakeVariant(n.NotificationID),
		},
		int32(0)) // expire_timeout -- 0 means the notification will not expire

	if call.Err != nil {
		d.slogger.Log(context.TODO(), slog.LevelError,
			"could not send notification via dbus",
			"err", call.Err,
		)
		return fmt.Errorf("could not send notification via dbus: %w", call.Err)
	}

	return nil
}

func (d *dbusNotifier) sendNotificationViaNotifySend(n Notification) error {
	notifySend, err := exec.LookPath("notify-send")
	if err != nil {
		d.slogger.Log(context.TODO(), slog.LevelDebug,
			"notify-send not installed",
			"err", err,
		)
		return fmt.Errorf("notify-send not installed: %w", err)
	}

	cmd := exec.Command(notifySend, n.Title, n.Body)
	if out, err := cmd.CombinedOutput(); err != nil {
		d.slogger.Log(context.TODO(), slog.LevelError,
			"could not send notification via notify-send",
			"output", string(out),
			"err", err,
		)
		return fmt.Errorf("could not send notification via notify-send: %s: %w", string(out), err)
	}

	return nil
}
