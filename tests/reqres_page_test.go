package tests

import (
	"context"

	"github.com/grafana/pagekit/locator"
	"github.com/grafana/pagekit/pageobject"
)

// reqresHTML is a small copy of a request catalogue page: a list of
// request links and a panel with the last response.
const reqresHTML = `<!doctype html>
<html>
<head><title>Reqres</title></head>
<body>
<ul class="endpoints">
  <li data-id="users"><a href="#" onclick="show(200, '{&quot;page&quot;:2}'); return false">List users</a></li>
  <li data-id="users-single-not-found"><a href="#" onclick="show(404, '{}'); return false">Single user not found</a></li>
  <li data-id="post"><a href="#" onclick="show(201, '{&quot;id&quot;:1}'); return false">Create</a></li>
  <li data-id="hidden" style="display:none"><a href="#" onclick="show(500, ''); return false">Hidden</a></li>
  <li data-id="delayed" style="display:none"><a href="#" onclick="show(204, ''); return false">Delayed</a></li>
</ul>
<div class="response">
  <span data-key="response-code"></span>
  <pre data-key="output-response"></pre>
</div>
<form>
  <input id="email" type="text" oninput="document.getElementById('echo').textContent = this.value">
  <span id="echo"></span>
</form>
<div id="window-width"></div>
<script>
  function show(code, body) {
    document.querySelector('[data-key="response-code"]').textContent = code;
    document.querySelector('[data-key="output-response"]').textContent = body;
  }
  document.getElementById('window-width').textContent = window.innerWidth;
  setTimeout(function() {
    document.querySelector('li[data-id="delayed"]').style.display = '';
  }, 300);
</script>
</body>
</html>`

var (
	getMethods     = locator.New("GET method", `//li[@data-id="{text}"]//a`)
	responseCode   = locator.New("response code", `[data-key="response-code"]`)
	outputResponse = locator.New("output response", `[data-key="output-response"]`)
	emailInput     = locator.New("email input", `#email`)
	emailEcho      = locator.New("email echo", `#echo`)
	endpointItems  = locator.New("endpoint items", `ul.endpoints li`)
	windowWidth    = locator.New("window width", `#window-width`)
)

// reqresPage is the page object of reqresHTML.
type reqresPage struct {
	*pageobject.Controller
}

func newReqresPage(c *pageobject.Controller) *reqresPage {
	return &reqresPage{Controller: c}
}

// openReqres serves reqresHTML at /reqres and opens it.
func openReqres(tb *testBrowser) *reqresPage {
	tb.t.Helper()

	tb.withPage("/reqres", reqresHTML)
	p := newReqresPage(tb.newController())
	if err := p.Navigate(tb.ctx, tb.URL("/reqres")); err != nil {
		tb.t.Fatalf("opening reqres page: %v", err)
	}
	return p
}

func (p *reqresPage) clickByRequest(ctx context.Context, request string, opts ...pageobject.Option) error {
	return p.Click(ctx, getMethods, append(opts, pageobject.With("text", request))...)
}

func (p *reqresPage) statusCode(ctx context.Context) (string, error) {
	return p.TextOf(ctx, responseCode)
}

func (p *reqresPage) output(ctx context.Context) (string, error) {
	return p.TextOf(ctx, outputResponse)
}
