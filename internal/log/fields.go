package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldYear          = "year"
	FieldMonth         = "month"
	FieldPeriod        = "period"
	FieldPaymentID     = "payment_id"
	FieldInvoiceNumber = "invoice_number"
	FieldReceipt       = "receipt_number"
	FieldDoctor        = "doctor"
	FieldService       = "service"
	FieldCategory      = "category"
	FieldAmountCents   = "amount_cents"
	FieldAppointmentID = "appointment_id"
	FieldChannel       = "channel"
	FieldKey           = "key"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentLedger       = "ledger"
	ComponentReport       = "report"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentSheets       = "sheets"
	ComponentCache        = "cache"
	ComponentSecurity     = "security"
	ComponentRateLimit    = "rate_limit"
	ComponentBackend      = "backend"
	ComponentRender       = "render"
	ComponentAppointments = "appointments"
	ComponentNotify       = "notify"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpList     = "list"
	OpImport   = "import"
	OpClear    = "clear"
	OpRestore  = "restore"
	OpPersist  = "persist"
	OpSync     = "sync"
	OpRender   = "render"
	OpPrint    = "print"
	OpDeliver  = "deliver"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypePersistence   = "persistence_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// With adds an arbitrary field
func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
	return f
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithPayment adds payment-related fields
func (f LogFields) WithPayment(id, invoiceNumber, doctor, service string, netCents int64) LogFields {
	f[FieldPaymentID] = id
	f[FieldInvoiceNumber] = invoiceNumber
	f[FieldDoctor] = doctor
	f[FieldService] = service
	f[FieldAmountCents] = netCents
	return f
}

// WithExpense adds expense-related fields
func (f LogFields) WithExpense(category string, amountCents int64) LogFields {
	f[FieldCategory] = category
	f[FieldAmountCents] = amountCents
	return f
}

// WithNotification adds notification delivery fields
func (f LogFields) WithNotification(channel, kind, appointmentID string) LogFields {
	f[FieldChannel] = channel
	f["kind"] = kind
	if appointmentID != "" {
		f[FieldAppointmentID] = appointmentID
	}
	return f
}

// WithPeriod adds the reporting month
func (f LogFields) WithPeriod(year, month int) LogFields {
	f[FieldYear] = year
	f[FieldMonth] = month
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
