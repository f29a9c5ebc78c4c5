package constant

type AttachmentKind string

const (
	AttachmentKindNormal      AttachmentKind = "normal"
	AttachmentKindInteractive AttachmentKind = "interactive"
)

func (k AttachmentKind) Valid() bool {
	return k == AttachmentKindNormal || k == AttachmentKindInteractive
}

func (k AttachmentKind) String() string {
	return string(k)
}

type TocAction string

const (
	TocActionCreated   TocAction = "created"
	TocActionUpdated   TocAction = "updated"
	TocActionDeleted   TocAction = "deleted"
	TocActionReordered TocAction = "reordered"
)

const (
	TocExchange   = "toc_exchange"
	TocQueue      = "toc_changed_queue"
	TocRoutingKey = "toc.changed"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
