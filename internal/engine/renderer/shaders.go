package renderer

const chunkVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec2 aUV;

uniform mat4 uViewProj;

out vec3 vNormal;
out vec2 vUV;

void main() {
	vNormal = aNormal;
	vUV = aUV;
	gl_Position = uViewProj * vec4(aPos, 1.0);
}
`

const chunkFragmentShader = `
#version 410 core

in vec3 vNormal;
in vec2 vUV;

uniform vec3 uPalette[8];
uniform int uPaletteSize;
uniform vec2 uElevation;
uniform int uFailed;
uniform vec3 uFailedColor;
uniform vec3 uLightDir;

out vec4 FragColor;

void main() {
	float diffuse = max(dot(normalize(vNormal), uLightDir), 0.0) * 0.8 + 0.2;
	if (uFailed == 1) {
		FragColor = vec4(uFailedColor * diffuse, 1.0);
		return;
	}

	// x: biome position, y: elevation
	float band = clamp(vUV.x, 0.0, 1.0) * float(uPaletteSize - 1);
	int lo = int(floor(band));
	int hi = min(lo + 1, uPaletteSize - 1);
	vec3 biome = mix(uPalette[lo], uPalette[hi], fract(band));

	float h = clamp((vUV.y - uElevation.x) / (uElevation.y - uElevation.x), 0.0, 1.0);
	vec3 color = h <= 0.0 ? vec3(0.08, 0.2, 0.45) : biome * (0.75 + 0.25 * h);

	FragColor = vec4(color * diffuse, 1.0);
}
`
