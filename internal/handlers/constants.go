package handlers

// Common error message constants shared across handlers
const (
	ErrMsgInvalidRequestBody = "Invalid request body"
	ErrMsgUnauthorized       = "Not authorized"
	ErrMsgPermissionDenied   = "Not authorized to perform this action"
	ErrMsgPostNotFound       = "Post not found"
	ErrMsgCommentNotFound    = "Comment not found"
	ErrMsgUserNotFound       = "User not found"
	ErrMsgUserExists         = "User already exists with this email or phone"
	ErrMsgInvalidCredentials = "Invalid credentials"
	ErrMsgStatusConflict     = "Post was modified by another request, please reload"
	ErrMsgInternal           = "Internal server error"
)

// Form and path parameter names
const (
	mediaField = "media"
	tagsField  = "tags"
)

// maxMultipartMemory is held in memory while parsing uploads; larger parts spill to disk
const maxMultipartMemory = 32 << 20
