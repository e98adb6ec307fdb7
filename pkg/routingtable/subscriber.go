package routingtable

// DirectSubscriber is a non-shared subscription held by one consumer
// handle. Its ID is the handle ID.
type DirectSubscriber struct {
	handleID string
	browser  bool
}

// NewDirectSubscriber creates the subscriber for a direct subscription handle.
func NewDirectSubscriber(handleID string) *DirectSubscriber {
	return &DirectSubscriber{handleID: handleID}
}

// NewBrowserSubscriber creates the subscriber for a browser handle, which
// is offered the retained messages of a destination before live ones.
func NewBrowserSubscriber(handleID string) *DirectSubscriber {
	return &DirectSubscriber{handleID: handleID, browser: true}
}

func (s *DirectSubscriber) ID() string { return s.handleID }

func (s *DirectSubscriber) Type() SubscriberType { return LocalClient }

// Browser reports whether the handle browses retained messages.
func (s *DirectSubscriber) Browser() bool { return s.browser }

// GroupSubscriber is a shared subscription group. Its ID is the group
// key, which is unique per share name, filter and selector.
type GroupSubscriber struct {
	key       string
	shareName string
}

// NewGroupSubscriber creates the subscriber for the shared group key.
func NewGroupSubscriber(key, shareName string) *GroupSubscriber {
	return &GroupSubscriber{key: key, shareName: shareName}
}

func (s *GroupSubscriber) ID() string { return s.key }

func (s *GroupSubscriber) Type() SubscriberType { return SharedGroup }

// ShareName returns the share name the group was created under.
func (s *GroupSubscriber) ShareName() string { return s.shareName }

var (
	_ Subscriber  = (*DirectSubscriber)(nil)
	_ Subscriber  = (*GroupSubscriber)(nil)
	_ Destination = NamedDestination("")
)
