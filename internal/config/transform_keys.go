package config

// Transform kind keys. Every transform descriptor entry carries exactly one.
const (
	TransformPathSet                   = "PathSet"
	TransformPathPrefix                = "PathPrefix"
	TransformPathRemovePrefix          = "PathRemovePrefix"
	TransformPathRouteValues           = "PathRouteValues"
	TransformRequestHeadersCopy        = "RequestHeadersCopy"
	TransformRequestHeaderOriginalHost = "RequestHeaderOriginalHost"
	TransformRequestHeader             = "RequestHeader"
	TransformResponseHeader            = "ResponseHeader"
	TransformResponseTrailer           = "ResponseTrailer"
	TransformClientCert                = "RequestHeaderClientCert"
	TransformXForwarded                = "X-Forwarded"
	TransformForwarded                 = "Forwarded"
	TransformHTTPMethodChange          = "HttpMethodChange"
	TransformQueryValueParameter       = "QueryValueParameter"
	TransformQueryRouteParameter       = "QueryRouteParameter"
	TransformQueryRemoveParameter      = "QueryRemoveParameter"
)

// Transform parameter keys.
const (
	ParamSet       = "Set"
	ParamAppend    = "Append"
	ParamWhen      = "When"
	ParamPrefix    = "Prefix"
	ParamForFormat = "ForFormat"
	ParamByFormat  = "ByFormat"
)

// When values for response header and trailer transforms.
const (
	WhenSuccess = "Success"
	WhenAlways  = "Always"
)

// X-Forwarded dimensions and the default header prefix.
const (
	XForwardedFor           = "For"
	XForwardedHost          = "Host"
	XForwardedProto         = "Proto"
	XForwardedPathBase      = "PathBase"
	DefaultXForwardedPrefix = "X-Forwarded-"
)

// Forwarded dimensions.
const (
	ForwardedBy    = "by"
	ForwardedFor   = "for"
	ForwardedHost  = "host"
	ForwardedProto = "proto"
)

// Node formats for the for and by parameters of the Forwarded header.
const (
	NodeFormatNone           = "None"
	NodeFormatRandom         = "Random"
	NodeFormatRandomAndPort  = "RandomAndPort"
	NodeFormatUnknown        = "Unknown"
	NodeFormatUnknownAndPort = "UnknownAndPort"
	NodeFormatIP             = "Ip"
	NodeFormatIPAndPort      = "IpAndPort"
)
