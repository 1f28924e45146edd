package rod

const (
	BasicHTML = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
	<h1>Hello World</h1>
</body>
</html>`

	FormHTML = `<!DOCTYPE html>
<html>
<body>
	<form id="testForm">
		<input id="username" type="text" name="username" aria-label="Username" />
		<button id="submit" type="button">Submit</button>
	</form>
	<iframe src="/frame"></iframe>
</body>
</html>`

	FrameHTML = `<!DOCTYPE html>
<html>
<body>
	<button id="inner" onclick="this.textContent='Clicked!'">Inner Button</button>
</body>
</html>`

	ScrollableHTML = `<!DOCTYPE html>
<html>
<body style="height: 5000px;">
	<h1 id="top">Top of Page</h1>
	<div style="margin-top: 2000px;" id="middle">Middle</div>
	<div style="margin-top: 2000px;" id="bottom">Bottom</div>
</body>
</html>`
)
