package attohttpc

// Shorthand constructors for the common methods. Use [New] for the rest
// (OPTIONS, TRACE).

func Get(url string) *RequestBuilder    { return New(MethodGet, url) }
func Head(url string) *RequestBuilder   { return New(MethodHead, url) }
func Post(url string) *RequestBuilder   { return New(MethodPost, url) }
func Put(url string) *RequestBuilder    { return New(MethodPut, url) }
func Delete(url string) *RequestBuilder { return New(MethodDelete, url) }
func Patch(url string) *RequestBuilder  { return New(MethodPatch, url) }
