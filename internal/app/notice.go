package app

// Notice is the short confirmation or failure text the editor shows after an
// admin action.
type Notice struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
}

const (
	variantDefault     = "default"
	variantDestructive = "destructive"
)

func success(title, description string) Notice {
	return Notice{Title: title, Description: description, Variant: variantDefault}
}

func failure(title, description string) Notice {
	if title == "" {
		title = "Error"
	}
	return Notice{Title: title, Description: description, Variant: variantDestructive}
}

var (
	noticeBlockMoved        = success("Block moved", "The block position has been updated.")
	noticeBlockMoveFailed   = failure("", "Could not move the block.")
	noticeColumnMoved       = success("Block moved", "The block has been moved to another column.")
	noticeColumnMoveFailed  = failure("", "Could not move the block to another column.")
	noticeSectionMoved      = success("Section moved", "The page section position has been updated.")
	noticeSectionMoveFailed = failure("", "Could not move the page section.")
	noticePageCreated       = success("Page Section Created", "A new section has been added to your page.")
	noticePageCreateFailed  = failure("", "Could not create new page section.")
	noticePageUpdated       = success("Success", "Page updated.")
	noticePageUpdateFailed  = failure("", "Could not update page.")
	noticeWidthsFailed      = failure("Error Saving Layout", "Could not save new column sizes.")
	noticeWidthsSaved       = success("Layout saved", "Column sizes have been updated.")
	noticeBlockCreated      = success("Block added", "A new block has been added to the section.")
	noticeBlockCreateFailed = failure("", "Could not add the block.")
	noticeResumeUpdated     = success("Success", "Portfolio updated successfully.")
	noticeResumeFailed      = failure("", "Failed to update portfolio.")
	noticeMessageSent       = success("Success", "Your message has been sent. Thanks!")
	noticeMessageFailed     = failure("", "Could not send message. Please contact via email.")
	noticeMessageDeleted    = success("Message deleted", "The message has been removed from your inbox.")
	noticeMessageDelFailed  = failure("", "Could not delete the message.")
	noticeLoggedOut         = success("Success", "You have been logged out.")
)

func blockUpdated(kind string) Notice {
	if kind == "spacer" {
		return success("Success", "Spacer block updated.")
	}
	return success("Success", "Text block updated.")
}

func blockUpdateFailed(kind string) Notice {
	if kind == "spacer" {
		return failure("", "Could not update spacer block.")
	}
	return failure("", "Could not update text block.")
}

func deleted(label string, isPage bool) Notice {
	if isPage {
		return success("Success", `Page section "`+label+`" has been deleted.`)
	}
	return success("Success", `Block "`+label+`" has been deleted.`)
}

func deleteFailed(label string) Notice {
	return failure("", "Could not delete "+label+".")
}
