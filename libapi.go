package alertflow

import (
	"github.com/drblury/alertflow/internal/runtime/alert"
	"github.com/drblury/alertflow/internal/runtime/bootstrap"
	configpkg "github.com/drblury/alertflow/internal/runtime/config"
	"github.com/drblury/alertflow/internal/runtime/enricher"
	errspkg "github.com/drblury/alertflow/internal/runtime/errors"
	idspkg "github.com/drblury/alertflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/alertflow/internal/runtime/jsoncodec"
	lambdapkg "github.com/drblury/alertflow/internal/runtime/lambda"
	loggingpkg "github.com/drblury/alertflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/alertflow/internal/runtime/metadata"
	"github.com/drblury/alertflow/internal/runtime/notify"
	"github.com/drblury/alertflow/internal/runtime/parser"
	"github.com/drblury/alertflow/internal/runtime/pipeline"
	"github.com/drblury/alertflow/internal/runtime/storage"
	"github.com/drblury/alertflow/internal/runtime/storage/memory"
	newtransport "github.com/drblury/alertflow/transport"
)

type (
	Config      = configpkg.Config
	AWSSettings = configpkg.AWSSettings

	App        = bootstrap.App
	AppOptions = bootstrap.Options

	// Pipeline data
	RawRecord        = alert.RawRecord
	Batch            = alert.Batch
	Message          = alert.Message
	Record           = alert.Record
	Notification     = alert.Notification
	BatchResult      = alert.BatchResult
	MessageAttribute = alert.MessageAttribute

	// Orchestration
	Processor     = pipeline.Processor
	Dependencies  = pipeline.Dependencies
	Response      = pipeline.Response
	BatchError    = pipeline.BatchError
	Stage         = pipeline.Stage
	RecordHooks   = pipeline.RecordHooks
	RecordContext = pipeline.RecordContext
	Metrics       = pipeline.Metrics
	Stats         = pipeline.Stats
	StatsSnapshot = pipeline.StatsSnapshot
	ErrorCategory = pipeline.ErrorCategory
	Parser        = pipeline.Parser
	Enricher      = pipeline.Enricher

	// Collaborators
	Sink          = storage.Sink
	Store         = storage.Store
	StorageError  = storage.Error
	Publisher     = notify.Publisher
	PublisherFunc = notify.PublisherFunc
	NotifyError   = notify.Error

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError

	// Modular transport types. Import individual transports via
	// _ "github.com/drblury/alertflow/transport/kafka".
	Transport         = newtransport.Transport
	TransportBuilder  = newtransport.Builder
	TransportConfig   = newtransport.Config
	TransportRegistry = newtransport.Registry
)

var (
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig

	NewApp       = bootstrap.New
	NewProcessor = pipeline.NewProcessor
	NewParser    = parser.New
	NewEnricher  = enricher.New
	NewStats     = pipeline.NewStats
	NewMetrics   = pipeline.NewMetrics
	Classify     = pipeline.Classify

	NewMemoryStore              = memory.New
	RegisterStorage             = storage.Register
	BuildStorage                = storage.Build
	NewSNSPublisher             = notify.NewSNSPublisher
	NewSNSPublisherFromConfig   = notify.NewSNSPublisherFromConfig
	NewTransportPublisher       = notify.NewTransportPublisher
	WithNotificationMetadata    = notify.WithMetadata
	NotificationMetadataFromCtx = notify.MetadataFrom
	ReadNotification            = notify.ReadMessage

	NewLambdaHandler = lambdapkg.NewHandler
	FromSQSEvent     = lambdapkg.FromSQSEvent

	LoggingHooks = pipeline.LoggingHooks
	MetricsHooks = pipeline.MetricsHooks

	DefaultTransportRegistry = newtransport.DefaultRegistry
	RegisterTransport        = newtransport.Register
	BuildTransport           = newtransport.Build

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrLoggerRequired     = errspkg.ErrLoggerRequired
	ErrSinkRequired       = errspkg.ErrSinkRequired
	ErrPublisherRequired  = errspkg.ErrPublisherRequired
	ErrTopicRequired      = errspkg.ErrTopicRequired
	ErrUnknownBackend     = errspkg.ErrUnknownBackend
	ErrRecordNotFound     = errspkg.ErrRecordNotFound
	ErrInvalidRecordLimit = errspkg.ErrInvalidRecordLimit
	ErrPanic              = pipeline.ErrPanic

	NewLogger            = loggingpkg.New
	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewNopLogger         = loggingpkg.NewNopLogger
	NewWatermillAdapter  = loggingpkg.NewWatermillAdapter

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.CreateULID
	CreateUUID = idspkg.CreateUUID
)

// Pipeline stages reported by BatchError.
const (
	StageParse   = pipeline.StageParse
	StageEnrich  = pipeline.StageEnrich
	StageSave    = pipeline.StageSave
	StageEncode  = pipeline.StageEncode
	StagePublish = pipeline.StagePublish
)

// Error category constants returned by Classify.
const (
	ErrorCategoryNone         = pipeline.ErrorCategoryNone
	ErrorCategoryStorage      = pipeline.ErrorCategoryStorage
	ErrorCategoryNotification = pipeline.ErrorCategoryNotification
	ErrorCategoryInternal     = pipeline.ErrorCategoryInternal
)

// Metadata keys attached to notifications published through a transport.
const (
	MetadataKeySubject         = metadatapkg.KeySubject
	MetadataKeyAlertID         = metadatapkg.KeyAlertID
	MetadataKeyCategory        = metadatapkg.KeyCategory
	MetadataKeyService         = metadatapkg.KeyService
	MetadataKeySourceMessageID = metadatapkg.KeySourceMessageID
)
