package content

// AnonymousName replaces the author of an anonymous item at display time.
const AnonymousName = "Anonymous"

// DisplayName is the author name shown to viewers. The stored username is
// never modified.
func DisplayName(it Item) string {
	if it.IsAnonymous {
		return AnonymousName
	}
	return it.Username
}

// View is the display shape sent to viewers. Anonymous items carry neither
// the username nor the author id; Mine tells the viewer whether it may offer
// edit controls.
type View struct {
	UID         string `json:"uid"`
	Text        string `json:"text"`
	Author      string `json:"author"`
	UserID      string `json:"userId,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
	EditedAt    int64  `json:"editedAt,omitempty"`
	Edited      bool   `json:"edited"`
	Title       string `json:"title,omitempty"`
	EndDate     int64  `json:"endDate,omitempty"`
	IsAnonymous bool   `json:"isAnonymous,omitempty"`
	ParentID    string `json:"parentId,omitempty"`
	Mine        bool   `json:"mine"`
}

// ViewFor renders it for the viewer identified by viewerUID.
func ViewFor(it Item, viewerUID string) View {
	v := View{
		UID:         it.UID,
		Text:        it.Text,
		Author:      DisplayName(it),
		CreatedAt:   it.CreatedAt,
		EditedAt:    it.EditedAt,
		Edited:      it.Edited(),
		Title:       it.Title,
		EndDate:     it.EndDate,
		IsAnonymous: it.IsAnonymous,
		ParentID:    it.ParentID,
		Mine:        viewerUID != "" && it.UserID == viewerUID,
	}
	if !it.IsAnonymous {
		v.UserID = it.UserID
	}
	return v
}

// Views renders a whole snapshot. A nil snapshot stays nil.
func Views(items []Item, viewerUID string) []View {
	if items == nil {
		return nil
	}
	out := make([]View, len(items))
	for i, it := range items {
		out[i] = ViewFor(it, viewerUID)
	}
	return out
}
