package favorites

import "log/slog"

// VariantDestructive marks an error notice.
const VariantDestructive = "destructive"

// Notice is a short user-visible message, shown by the UI as a toast.
type Notice struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Variant     string `json:"variant,omitempty"`
}

// Notifier delivers notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) {
	f(n)
}

// logNotifier is the default Notifier when no UI is attached.
type logNotifier struct {
	logger *slog.Logger
}

func (l logNotifier) Notify(n Notice) {
	l.logger.Info("notice", "title", n.Title, "description", n.Description, "variant", n.Variant)
}

var (
	noticeAdded        = Notice{Title: "Added to favorites"}
	noticeRemoved      = Notice{Title: "Removed from favorites"}
	noticeAddFailed    = Notice{Title: "Error", Description: "Could not add to favorites", Variant: VariantDestructive}
	noticeRemoveFailed = Notice{Title: "Error", Description: "Could not remove from favorites", Variant: VariantDestructive}
)
