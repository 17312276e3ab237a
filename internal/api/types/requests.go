package types

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Company   string `json:"company"`
	Phone     string `json:"phone"`
	SessionID string `json:"sessionId"`
}

type LoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	SessionID string `json:"sessionId"`
}

type ValidateRequest struct {
	UserID       string `json:"userId"`
	SessionToken string `json:"sessionToken"`
}

type LogoutRequest struct {
	UserID string `json:"userId"`
}

// ProfileUpdateRequest distinguishes absent fields (nil) from cleared ones.
type ProfileUpdateRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Company *string `json:"company"`
	Phone   *string `json:"phone" validate:"omitempty,max=20"`
	Avatar  *string `json:"avatar"`
}

type GstReturnCreateRequest struct {
	UserID     string `json:"userId" validate:"required"`
	ReturnType string `json:"returnType" validate:"required,max=50"`
	Period     string `json:"period" validate:"required"`
	Status     string `json:"status" validate:"omitempty,oneof=Filed Pending Draft Overdue"`
	TotalTax   string `json:"totalTax" validate:"max=50"`
}

type GstReturnPatchRequest struct {
	ReturnType *string `json:"returnType" validate:"omitempty,max=50"`
	Period     *string `json:"period"`
	Status     *string `json:"status" validate:"omitempty,oneof=Filed Pending Draft Overdue"`
	TotalTax   *string `json:"totalTax" validate:"omitempty,max=50"`
}

type InvoiceCreateRequest struct {
	UserID        string `json:"userId" validate:"required"`
	InvoiceNumber string `json:"invoiceNumber" validate:"required,max=100"`
	Gstin         string `json:"gstin" validate:"max=50"`
	BuyerName     string `json:"buyerName" validate:"max=255"`
	Amount        string `json:"amount" validate:"max=50"`
	TaxAmount     string `json:"taxAmount" validate:"max=50"`
	HsnCode       string `json:"hsnCode" validate:"max=50"`
	Status        string `json:"status" validate:"omitempty,oneof=processed error pending"`
	FileName      string `json:"fileName" validate:"max=255"`
}

type GovernmentUploadRequest struct {
	Filename string `json:"filename"`
	UserID   string `json:"userId"`
}
