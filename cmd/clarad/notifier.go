package main

import "github.com/sirupsen/logrus"

// desktopNotifier logs watchdog notifications; a desktop shell wiring a
// real toast/tray notification would replace this with its own
// implementation of watchdog.Notifier.
type desktopNotifier struct {
	log *logrus.Entry
}

func (n desktopNotifier) Notify(kind, message string) {
	n.log.WithField("kind", kind).Info(message)
}
